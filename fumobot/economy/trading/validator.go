package trading

import (
	"context"
)

// FumoRow is one backing row of a participant's fumo holdings. A fumo's
// total owned quantity may be spread across several rows (one per
// acquisition batch), so sufficiency checks and deductions always walk
// the full row set.
type FumoRow struct {
	RowID    int64
	Quantity int64
}

// StoreReader is the read-only slice of the backing store the trading
// core depends on. Repositories implement it; tests use an in-memory
// fake.
type StoreReader interface {
	GetBalances(ctx context.Context, userID string) (map[Currency]int64, error)
	GetItemQuantity(ctx context.Context, userID string, itemID string) (int64, error)
	OwnsPet(ctx context.Context, userID string, petID int64) (bool, error)
	GetFumoRows(ctx context.Context, userID string, name string) ([]FumoRow, error)
}

// Validator checks that a side's offer is backed by its live holdings.
// It performs pure reads; no state changes.
//
// The same check runs twice per trade: advisorily while the offer is
// being built, and mandatorily right before settlement, because balances
// can change between consent and execution.
type Validator struct {
	store StoreReader
}

func NewValidator(store StoreReader) *Validator {
	return &Validator{store: store}
}

// Validate returns nil if every pledge on the side is currently backed,
// otherwise the first failure found as a typed error.
func (v *Validator) Validate(ctx context.Context, side *OfferSide) error {
	if len(side.Currency) > 0 {
		balances, err := v.store.GetBalances(ctx, side.UserID)
		if err != nil {
			return err
		}
		for kind, need := range side.Currency {
			if have := balances[kind]; have < need {
				return &InsufficientError{UserID: side.UserID, Resource: string(kind), Have: have, Need: need}
			}
		}
	}

	for itemID, need := range side.Items {
		have, err := v.store.GetItemQuantity(ctx, side.UserID, itemID)
		if err != nil {
			return err
		}
		if have < need {
			return &InsufficientError{UserID: side.UserID, Resource: itemID, Have: have, Need: need}
		}
	}

	for petID := range side.Pets {
		owned, err := v.store.OwnsPet(ctx, side.UserID, petID)
		if err != nil {
			return err
		}
		if !owned {
			return &PetNotFoundError{UserID: side.UserID, PetID: petID}
		}
	}

	for name, need := range side.Fumos {
		have, err := v.ownedFumoTotal(ctx, side.UserID, name)
		if err != nil {
			return err
		}
		if have < need {
			return &InsufficientError{UserID: side.UserID, Resource: name, Have: have, Need: need}
		}
	}

	return nil
}

// ownedFumoTotal sums every backing row for the named fumo.
func (v *Validator) ownedFumoTotal(ctx context.Context, userID, name string) (int64, error) {
	rows, err := v.store.GetFumoRows(ctx, userID, name)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, row := range rows {
		total += row.Quantity
	}
	return total, nil
}
