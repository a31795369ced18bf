package trading

import (
	"sort"
	"strings"
	"time"
)

type State string

const (
	StatePendingInvite State = "pending_invite"
	StateActive        State = "active"
	StateBothAccepted  State = "both_accepted"
	StateConfirming    State = "confirming"
	StateCompleted     State = "completed"
	StateCancelled     State = "cancelled"
)

type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyGems  Currency = "gems"
)

// PetSnapshot is the display copy of a pet pledged in an offer. Ownership
// is always re-checked against the live store, never against the snapshot.
type PetSnapshot struct {
	PetID   int64
	Name    string
	Species string
	Level   int
}

// OfferSide is one participant's contribution to a trade.
type OfferSide struct {
	UserID   string
	Username string

	Currency map[Currency]int64
	Items    map[string]int64 // item id -> quantity
	Pets     map[int64]PetSnapshot
	Fumos    map[string]int64 // fumo name -> quantity

	Accepted  bool
	Confirmed bool
}

func newOfferSide(userID, username string) *OfferSide {
	return &OfferSide{
		UserID:   userID,
		Username: username,
		Currency: make(map[Currency]int64),
		Items:    make(map[string]int64),
		Pets:     make(map[int64]PetSnapshot),
		Fumos:    make(map[string]int64),
	}
}

// Empty reports whether nothing at all is pledged on this side.
func (o *OfferSide) Empty() bool {
	return len(o.Currency) == 0 && len(o.Items) == 0 && len(o.Pets) == 0 && len(o.Fumos) == 0
}

// Session is a two-party trade negotiation. It lives only in memory; the
// durable side effects of a completed trade are written by the settlement
// transaction.
type Session struct {
	Key   string
	State State

	// Version increases on every mutation. Callers that captured a stale
	// view can pass their last-known version and get ErrVersionMismatch
	// instead of acting on a trade that changed underneath them.
	Version int64

	SideA *OfferSide
	SideB *OfferSide

	CreatedAt  time.Time
	LastUpdate time.Time
}

// SessionKey derives the canonical order-independent key for a pair of
// participants, so at most one session exists per unordered pair.
func SessionKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

func newSession(proposerID, proposerName, targetID, targetName string, now time.Time) *Session {
	return &Session{
		Key:        SessionKey(proposerID, targetID),
		State:      StatePendingInvite,
		SideA:      newOfferSide(proposerID, proposerName),
		SideB:      newOfferSide(targetID, targetName),
		CreatedAt:  now,
		LastUpdate: now,
	}
}

// Side returns the offer side belonging to userID, or nil.
func (s *Session) Side(userID string) *OfferSide {
	switch userID {
	case s.SideA.UserID:
		return s.SideA
	case s.SideB.UserID:
		return s.SideB
	}
	return nil
}

// Other returns the counterpart side of userID, or nil.
func (s *Session) Other(userID string) *OfferSide {
	switch userID {
	case s.SideA.UserID:
		return s.SideB
	case s.SideB.UserID:
		return s.SideA
	}
	return nil
}

func (s *Session) Terminal() bool {
	return s.State == StateCompleted || s.State == StateCancelled
}

// touch records a mutation: bump the version and the idle clock.
func (s *Session) touch(now time.Time) {
	s.Version++
	s.LastUpdate = now
}

// resetConsent clears both sides' accepted/confirmed flags. Stale consent
// must never survive an offer change, so every mutation routes through
// here before it is visible.
func (s *Session) resetConsent() {
	s.SideA.Accepted = false
	s.SideA.Confirmed = false
	s.SideB.Accepted = false
	s.SideB.Confirmed = false
	if s.State == StateBothAccepted || s.State == StateConfirming {
		s.State = StateActive
	}
}

// deriveConsentState moves the session between ACTIVE and BOTH_ACCEPTED
// based on the current accept flags. Confirm transitions are handled by
// the manager because they arm the settlement timer.
func (s *Session) deriveConsentState() {
	if s.SideA.Accepted && s.SideB.Accepted {
		if s.State == StateActive {
			s.State = StateBothAccepted
		}
		return
	}
	if s.State == StateBothAccepted {
		s.State = StateActive
	}
}
