package economy

import (
	"sync"

	"github.com/google/uuid"
)

type tradeAction string

const (
	actionAcceptInvite  tradeAction = "accept_invite"
	actionDeclineInvite tradeAction = "decline_invite"
	actionToggleAccept  tradeAction = "toggle_accept"
	actionToggleConfirm tradeAction = "toggle_confirm"
	actionCancel        tradeAction = "cancel"
)

// tokenBinding ties an opaque component token to a session action. The
// bound version pins the session state the button was rendered against,
// so a press on a stale panel is rejected instead of acting on an offer
// the user never saw.
type tokenBinding struct {
	SessionKey string
	Action     tradeAction
	Version    int64
}

// TokenRegistry maps opaque uuid tokens to trade actions. Custom IDs
// carry only the token, never session structure.
type TokenRegistry struct {
	mu        sync.RWMutex
	tokens    map[string]tokenBinding
	bySession map[string][]string
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		tokens:    make(map[string]tokenBinding),
		bySession: make(map[string][]string),
	}
}

// Issue mints a fresh token for one action on one session render.
func (r *TokenRegistry) Issue(sessionKey string, action tradeAction, version int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := uuid.NewString()
	r.tokens[token] = tokenBinding{SessionKey: sessionKey, Action: action, Version: version}
	r.bySession[sessionKey] = append(r.bySession[sessionKey], token)
	return token
}

// Resolve looks a token up without consuming it; buttons stay pressable
// until their session's tokens are revoked by the next render.
func (r *TokenRegistry) Resolve(token string) (tokenBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.tokens[token]
	return binding, ok
}

// RevokeSession invalidates every outstanding token of a session. Called
// on re-render and on termination.
func (r *TokenRegistry) RevokeSession(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.bySession[sessionKey] {
		delete(r.tokens, token)
	}
	delete(r.bySession, sessionKey)
}
