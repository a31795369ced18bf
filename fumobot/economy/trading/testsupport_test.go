package trading

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// fakeStore is an in-memory stand-in for the backing store, applying
// settlement plans with the same guarded semantics as the real
// transaction: any failed precondition aborts with nothing applied.
type fakeStore struct {
	balances map[string]map[Currency]int64
	items    map[string]map[string]int64
	pets     map[int64]string // pet id -> owner
	rows     []*fakeFumoRow
	nextRow  int64

	settleErr   error // injected transactional failure
	settleCalls int
}

type fakeFumoRow struct {
	id       int64
	userID   string
	name     string
	quantity int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[string]map[Currency]int64),
		items:    make(map[string]map[string]int64),
		pets:     make(map[int64]string),
	}
}

func (f *fakeStore) setBalance(userID string, kind Currency, amount int64) {
	if f.balances[userID] == nil {
		f.balances[userID] = make(map[Currency]int64)
	}
	f.balances[userID][kind] = amount
}

func (f *fakeStore) setItem(userID, itemID string, qty int64) {
	if f.items[userID] == nil {
		f.items[userID] = make(map[string]int64)
	}
	f.items[userID][itemID] = qty
}

func (f *fakeStore) addFumoRow(userID, name string, qty int64) int64 {
	f.nextRow++
	f.rows = append(f.rows, &fakeFumoRow{id: f.nextRow, userID: userID, name: name, quantity: qty})
	return f.nextRow
}

func (f *fakeStore) fumoTotal(userID, name string) int64 {
	var total int64
	for _, row := range f.rows {
		if row.userID == userID && row.name == name {
			total += row.quantity
		}
	}
	return total
}

func (f *fakeStore) GetBalances(_ context.Context, userID string) (map[Currency]int64, error) {
	out := make(map[Currency]int64)
	for kind, amount := range f.balances[userID] {
		out[kind] = amount
	}
	return out, nil
}

func (f *fakeStore) GetItemQuantity(_ context.Context, userID, itemID string) (int64, error) {
	return f.items[userID][itemID], nil
}

func (f *fakeStore) OwnsPet(_ context.Context, userID string, petID int64) (bool, error) {
	return f.pets[petID] == userID, nil
}

func (f *fakeStore) GetFumoRows(_ context.Context, userID, name string) ([]FumoRow, error) {
	var out []FumoRow
	for _, row := range f.rows {
		if row.userID == userID && row.name == name && row.quantity > 0 {
			out = append(out, FumoRow{RowID: row.id, Quantity: row.quantity})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out, nil
}

func (f *fakeStore) Settle(_ context.Context, _ *Session, plan []Mutation) error {
	f.settleCalls++
	if f.settleErr != nil {
		return f.settleErr
	}

	// Stage against copies so a failed precondition leaves nothing applied.
	staged := f.clone()
	for _, m := range plan {
		if err := staged.apply(m); err != nil {
			return err
		}
	}
	*f = *staged
	return nil
}

func (f *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	c.nextRow = f.nextRow
	c.settleCalls = f.settleCalls
	for userID, b := range f.balances {
		for kind, amount := range b {
			c.setBalance(userID, kind, amount)
		}
	}
	for userID, it := range f.items {
		for itemID, qty := range it {
			c.setItem(userID, itemID, qty)
		}
	}
	for petID, owner := range f.pets {
		c.pets[petID] = owner
	}
	for _, row := range f.rows {
		cp := *row
		c.rows = append(c.rows, &cp)
	}
	return c
}

func (f *fakeStore) apply(m Mutation) error {
	switch m.Op {
	case OpDebitCurrency:
		if f.balances[m.UserID][m.Currency] < m.Amount {
			return fmt.Errorf("balance of %s no longer covers %d", m.UserID, m.Amount)
		}
		f.balances[m.UserID][m.Currency] -= m.Amount
	case OpCreditCurrency:
		f.setBalance(m.UserID, m.Currency, f.balances[m.UserID][m.Currency]+m.Amount)
	case OpRemoveItem:
		if f.items[m.UserID][m.ItemID] < m.Amount {
			return fmt.Errorf("item %s no longer sufficient", m.ItemID)
		}
		f.items[m.UserID][m.ItemID] -= m.Amount
		if f.items[m.UserID][m.ItemID] == 0 {
			delete(f.items[m.UserID], m.ItemID)
		}
	case OpAddItem:
		f.setItem(m.UserID, m.ItemID, f.items[m.UserID][m.ItemID]+m.Amount)
	case OpDeductFumoRow:
		for i, row := range f.rows {
			if row.id == m.RowID {
				if row.quantity < m.Amount {
					return fmt.Errorf("fumo row %d no longer holds %d", m.RowID, m.Amount)
				}
				row.quantity -= m.Amount
				if row.quantity <= 0 {
					f.rows = append(f.rows[:i], f.rows[i+1:]...)
				}
				return nil
			}
		}
		return fmt.Errorf("fumo row %d missing", m.RowID)
	case OpAddFumo:
		f.addFumoRow(m.UserID, m.FumoName, m.Amount)
	case OpReassignPet:
		if f.pets[m.PetID] != m.FromUserID {
			return fmt.Errorf("pet %d is no longer owned by %s", m.PetID, m.FromUserID)
		}
		f.pets[m.PetID] = m.UserID
	default:
		return errors.New("unknown op")
	}
	return nil
}

// newTestManager wires a manager over the fake store. The grace delay is
// pushed far out so tests drive settlement explicitly via Settle.
func newTestManager(store *fakeStore) *Manager {
	cfg := DefaultConfig()
	cfg.GraceDelay = time.Hour
	return NewManager(cfg, NewSessionStore(), store, store)
}

// activeSession creates and activates an alice/bob session.
func activeSession(m *Manager) *Session {
	s, err := m.Propose("alice", "Alice", "bob", "Bob", false)
	if err != nil {
		panic(err)
	}
	s, err = m.AcceptInvite(s.Key, "bob")
	if err != nil {
		panic(err)
	}
	return s
}
