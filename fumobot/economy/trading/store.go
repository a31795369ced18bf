package trading

import (
	"sync"
)

// SessionStore is the registry of live trade sessions. It is created at
// process start and handed to the manager; nothing in this package keeps
// package-level state.
//
// The membership index enforces the one-active-session-per-participant
// rule at creation time rather than through locking.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	members  map[string]string // userID -> session key
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		members:  make(map[string]string),
	}
}

// Put registers a new session. It fails with ErrAlreadyTrading if either
// participant is already a party to a live session.
func (st *SessionStore) Put(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.members[s.SideA.UserID]; ok {
		return ErrAlreadyTrading
	}
	if _, ok := st.members[s.SideB.UserID]; ok {
		return ErrAlreadyTrading
	}

	st.sessions[s.Key] = s
	st.members[s.SideA.UserID] = s.Key
	st.members[s.SideB.UserID] = s.Key
	return nil
}

func (st *SessionStore) Get(key string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[key]
	return s, ok
}

// GetByUser returns the session the user is currently a party to, if any.
func (st *SessionStore) GetByUser(userID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	key, ok := st.members[userID]
	if !ok {
		return nil, false
	}
	s, ok := st.sessions[key]
	return s, ok
}

// Delete removes the session and releases both participants' trading
// slots. Removing an unknown key is a no-op.
func (st *SessionStore) Delete(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	if !ok {
		return
	}
	delete(st.sessions, key)
	delete(st.members, s.SideA.UserID)
	delete(st.members, s.SideB.UserID)
}

// Snapshot returns the currently registered sessions. The janitor sweeps
// over this copy so it never holds the store lock while cancelling.
func (st *SessionStore) Snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
