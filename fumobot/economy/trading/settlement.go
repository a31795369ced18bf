package trading

import (
	"context"
	"fmt"
)

type MutationOp string

const (
	OpDebitCurrency  MutationOp = "debit_currency"
	OpCreditCurrency MutationOp = "credit_currency"
	OpRemoveItem     MutationOp = "remove_item"
	OpAddItem        MutationOp = "add_item"
	OpDeductFumoRow  MutationOp = "deduct_fumo_row"
	OpAddFumo        MutationOp = "add_fumo"
	OpReassignPet    MutationOp = "reassign_pet"
)

// Mutation is one store write of a settlement. The full plan for a trade
// is applied as a single atomic transaction: either every mutation lands
// or none do.
type Mutation struct {
	Op         MutationOp
	UserID     string // affected user (recipient for reassign_pet)
	FromUserID string // previous owner, set for reassign_pet only
	Amount     int64

	Currency Currency
	ItemID   string
	FumoName string
	RowID    int64 // backing row for deduct_fumo_row
	PetID    int64
}

// Settler applies a settlement plan atomically and records the completed
// trade. Implemented by the settlement repository; tests use a fake.
type Settler interface {
	Settle(ctx context.Context, s *Session, plan []Mutation) error
}

// BuildPlan turns the session's two offers into the explicit list of
// store writes for a symmetric exchange. It reads fumo rows fresh so the
// per-row deduction walk matches what the store holds right now; the
// transaction re-checks each row quantity, so a row that shrinks between
// planning and execution fails the whole settlement cleanly.
func BuildPlan(ctx context.Context, store StoreReader, s *Session) ([]Mutation, error) {
	var plan []Mutation

	for _, side := range []*OfferSide{s.SideA, s.SideB} {
		other := s.Other(side.UserID)

		for kind, amount := range side.Currency {
			plan = append(plan,
				Mutation{Op: OpDebitCurrency, UserID: side.UserID, Currency: kind, Amount: amount},
				Mutation{Op: OpCreditCurrency, UserID: other.UserID, Currency: kind, Amount: amount},
			)
		}

		for itemID, qty := range side.Items {
			plan = append(plan,
				Mutation{Op: OpRemoveItem, UserID: side.UserID, ItemID: itemID, Amount: qty},
				Mutation{Op: OpAddItem, UserID: other.UserID, ItemID: itemID, Amount: qty},
			)
		}

		for name, qty := range side.Fumos {
			rowPlan, err := planFumoDeduction(ctx, store, side.UserID, name, qty)
			if err != nil {
				return nil, err
			}
			plan = append(plan, rowPlan...)
			// The recipient gets the whole quantity as one consolidated row.
			plan = append(plan, Mutation{Op: OpAddFumo, UserID: other.UserID, FumoName: name, Amount: qty})
		}

		for petID := range side.Pets {
			plan = append(plan, Mutation{Op: OpReassignPet, UserID: other.UserID, FromUserID: side.UserID, PetID: petID})
		}
	}

	return plan, nil
}

// planFumoDeduction walks the participant's backing rows for one fumo in
// the order the store returns them, draining each row until the requested
// quantity is covered.
func planFumoDeduction(ctx context.Context, store StoreReader, userID, name string, qty int64) ([]Mutation, error) {
	rows, err := store.GetFumoRows(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	var plan []Mutation
	remaining := qty
	for _, row := range rows {
		if remaining <= 0 {
			break
		}
		take := row.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Mutation{
			Op:       OpDeductFumoRow,
			UserID:   userID,
			FumoName: name,
			RowID:    row.RowID,
			Amount:   take,
		})
		remaining -= take
	}
	if remaining > 0 {
		have := qty - remaining
		return nil, &InsufficientError{UserID: userID, Resource: name, Have: have, Need: qty}
	}
	return plan, nil
}

// planSummary is used for logging only.
func planSummary(plan []Mutation) string {
	counts := make(map[MutationOp]int)
	for _, m := range plan {
		counts[m.Op]++
	}
	return fmt.Sprintf("%d mutations %v", len(plan), counts)
}
