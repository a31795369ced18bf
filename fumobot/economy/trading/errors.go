package trading

import (
	"errors"
	"fmt"
)

// Protocol errors: the caller used the API out of sequence. These are
// returned as-is and never change session state.
var (
	ErrTradeNotFound   = errors.New("trade not found")
	ErrNotParticipant  = errors.New("you are not part of this trade")
	ErrNotBothAccepted = errors.New("both sides must accept before confirming")
	ErrInvalidState    = errors.New("this trade is not in a state that allows that")
	ErrSelfTrade       = errors.New("you cannot trade with yourself")
	ErrBotAccount      = errors.New("you cannot trade with a bot")
	ErrAlreadyTrading  = errors.New("a participant is already in an active trade")
	ErrVersionMismatch = errors.New("the trade changed since you last saw it")
)

// Validation errors: user-correctable, carry have/need detail so the user
// can fix their offer without guessing.
var (
	ErrInvalidAmount   = errors.New("amount is out of range")
	ErrMaxItemsReached = errors.New("this trade already holds the maximum number of items")
	ErrMaxPetsReached  = errors.New("this trade already holds the maximum number of pets")
	ErrMaxFumosReached = errors.New("this trade already holds the maximum number of fumos")
)

// InsufficientError reports that a participant's live holdings cannot back
// their offer for a single resource.
type InsufficientError struct {
	UserID   string
	Resource string // currency kind, item id or fumo name
	Have     int64
	Need     int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient %s: have %d, need %d", e.Resource, e.Have, e.Need)
}

// PetNotFoundError reports that an offered pet is no longer owned by the
// offering participant.
type PetNotFoundError struct {
	UserID string
	PetID  int64
}

func (e *PetNotFoundError) Error() string {
	return fmt.Sprintf("pet %d is not owned by this user anymore", e.PetID)
}

// SettlementError wraps a failure to apply the settlement transaction.
// Settlement failures are terminal for the session; there is no retry.
type SettlementError struct {
	Key string
	Err error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement of trade %s failed: %v", e.Key, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }
