package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	completed []string
	failed    []string
	expired   []string
	cancelled []string
}

func (n *recordingNotifier) TradeCompleted(s *Session)             { n.completed = append(n.completed, s.Key) }
func (n *recordingNotifier) TradeFailed(s *Session, _ error)       { n.failed = append(n.failed, s.Key) }
func (n *recordingNotifier) TradeExpired(s *Session)               { n.expired = append(n.expired, s.Key) }
func (n *recordingNotifier) TradeCancelled(s *Session, _ string)   { n.cancelled = append(n.cancelled, s.Key) }

// confirmedSession drives an alice/bob session through accept and confirm
// so it sits in CONFIRMING, ready for Settle.
func confirmedSession(t *testing.T, m *Manager) *Session {
	t.Helper()
	s := activeSession(m)
	for _, user := range []string{"alice", "bob"} {
		_, err := m.ToggleAccept(s.Key, user, 0)
		require.NoError(t, err)
	}
	for _, user := range []string{"alice", "bob"} {
		_, err := m.ToggleConfirm(s.Key, user, 0)
		require.NoError(t, err)
	}
	require.Equal(t, StateConfirming, s.State)
	return s
}

// A symmetric exchange of currency, items, fumos and a pet lands fully on
// both sides, conserving every resource.
func TestSettleSymmetricExchange(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 500)
	store.setBalance("bob", CurrencyGems, 40)
	store.setItem("bob", "sword", 3)
	store.addFumoRow("alice", "Cirno", 2)
	store.addFumoRow("alice", "Cirno", 3)
	store.pets[11] = "bob"

	m := newTestManager(store)
	s := activeSession(m)
	ctx := context.Background()

	_, err := m.UpdateCurrency(ctx, s.Key, "alice", 0, CurrencyCoins, 300)
	require.NoError(t, err)
	_, err = m.UpdateFumo(ctx, s.Key, "alice", 0, "Cirno", 4, 0)
	require.NoError(t, err)
	_, err = m.UpdateCurrency(ctx, s.Key, "bob", 0, CurrencyGems, 25)
	require.NoError(t, err)
	_, err = m.UpdateItem(ctx, s.Key, "bob", 0, "sword", 2)
	require.NoError(t, err)
	_, err = m.AddPet(ctx, s.Key, "bob", 0, PetSnapshot{PetID: 11, Name: "Chen", Species: "cat"})
	require.NoError(t, err)

	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleAccept(s.Key, user, 0)
		require.NoError(t, err)
	}
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleConfirm(s.Key, user, 0)
		require.NoError(t, err)
	}

	require.NoError(t, m.Settle(ctx, s.Key))

	require.Equal(t, int64(200), store.balances["alice"][CurrencyCoins])
	require.Equal(t, int64(300), store.balances["bob"][CurrencyCoins])
	require.Equal(t, int64(25), store.balances["alice"][CurrencyGems])
	require.Equal(t, int64(15), store.balances["bob"][CurrencyGems])
	require.Equal(t, int64(1), store.items["bob"]["sword"])
	require.Equal(t, int64(2), store.items["alice"]["sword"])
	require.Equal(t, int64(1), store.fumoTotal("alice", "Cirno"))
	require.Equal(t, int64(4), store.fumoTotal("bob", "Cirno"))
	require.Equal(t, "alice", store.pets[11])

	_, ok := m.Session(s.Key)
	require.False(t, ok)
}

// The fumo deduction drains batch rows in order, deleting emptied rows and
// crediting the recipient as one consolidated row.
func TestFumoDeductionWalksRowsInOrder(t *testing.T) {
	store := newFakeStore()
	first := store.addFumoRow("alice", "Reimu", 2)
	second := store.addFumoRow("alice", "Reimu", 5)

	plan, err := planFumoDeduction(context.Background(), store, "alice", "Reimu", 4)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, first, plan[0].RowID)
	require.Equal(t, int64(2), plan[0].Amount)
	require.Equal(t, second, plan[1].RowID)
	require.Equal(t, int64(2), plan[1].Amount)
}

func TestFumoDeductionShortfall(t *testing.T) {
	store := newFakeStore()
	store.addFumoRow("alice", "Reimu", 2)

	_, err := planFumoDeduction(context.Background(), store, "alice", "Reimu", 5)
	var ierr *InsufficientError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, int64(2), ierr.Have)
	require.Equal(t, int64(5), ierr.Need)
}

// Balance drained during the grace window: settlement re-validates, drops
// the session back to BOTH_ACCEPTED with confirmations cleared, and writes
// nothing.
func TestSettleRevalidationFailureRevertsToBothAccepted(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 100)
	m := newTestManager(store)
	notifier := &recordingNotifier{}
	m.SetNotifier(notifier)

	s := activeSession(m)
	ctx := context.Background()
	_, err := m.UpdateCurrency(ctx, s.Key, "alice", 0, CurrencyCoins, 100)
	require.NoError(t, err)
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleAccept(s.Key, user, 0)
		require.NoError(t, err)
	}
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleConfirm(s.Key, user, 0)
		require.NoError(t, err)
	}

	// Alice spends elsewhere while the grace timer runs.
	store.setBalance("alice", CurrencyCoins, 40)

	err = m.Settle(ctx, s.Key)
	var ierr *InsufficientError
	require.ErrorAs(t, err, &ierr)

	live, ok := m.Session(s.Key)
	require.True(t, ok)
	require.Equal(t, StateBothAccepted, live.State)
	require.True(t, live.SideA.Accepted)
	require.True(t, live.SideB.Accepted)
	require.False(t, live.SideA.Confirmed)
	require.False(t, live.SideB.Confirmed)
	require.Equal(t, int64(40), store.balances["alice"][CurrencyCoins])
	require.Zero(t, store.settleCalls)
	require.Equal(t, []string{s.Key}, notifier.failed)
}

// A precondition broken inside the transaction itself aborts with zero
// partial effects and terminates the session.
func TestSettleTransactionFailureIsAllOrNothing(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 100)
	store.addFumoRow("bob", "Marisa", 3)
	m := newTestManager(store)
	notifier := &recordingNotifier{}
	m.SetNotifier(notifier)

	s := activeSession(m)
	ctx := context.Background()
	_, err := m.UpdateCurrency(ctx, s.Key, "alice", 0, CurrencyCoins, 100)
	require.NoError(t, err)
	_, err = m.UpdateFumo(ctx, s.Key, "bob", 0, "Marisa", 3, 0)
	require.NoError(t, err)
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleAccept(s.Key, user, 0)
		require.NoError(t, err)
	}
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleConfirm(s.Key, user, 0)
		require.NoError(t, err)
	}

	store.settleErr = errors.New("serialization failure")

	err = m.Settle(ctx, s.Key)
	var serr *SettlementError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, s.Key, serr.Key)

	// Nothing moved on either side.
	require.Equal(t, int64(100), store.balances["alice"][CurrencyCoins])
	require.Zero(t, store.balances["bob"][CurrencyCoins])
	require.Equal(t, int64(3), store.fumoTotal("bob", "Marisa"))

	// Terminal for this session; both slots released.
	_, ok := m.Session(s.Key)
	require.False(t, ok)
	require.Equal(t, []string{s.Key}, notifier.failed)

	_, err = m.Propose("alice", "Alice", "carol", "Carol", false)
	require.NoError(t, err)
}

// An empty-for-empty trade is legal and simply completes.
func TestSettleEmptyOffers(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	notifier := &recordingNotifier{}
	m.SetNotifier(notifier)

	s := confirmedSession(t, m)
	require.NoError(t, m.Settle(context.Background(), s.Key))
	require.Equal(t, 1, store.settleCalls)
	require.Equal(t, []string{s.Key}, notifier.completed)
}

func TestSettleRequiresConfirmingState(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	require.ErrorIs(t, m.Settle(context.Background(), s.Key), ErrInvalidState)
	require.ErrorIs(t, m.Settle(context.Background(), "no:session"), ErrTradeNotFound)
}

// Identical fumos pledged by both sides still settle: each side's rows are
// drained and each side is credited a fresh batch row.
func TestSettleMirroredFumoOffers(t *testing.T) {
	store := newFakeStore()
	store.addFumoRow("alice", "Cirno", 5)
	store.addFumoRow("bob", "Cirno", 5)
	m := newTestManager(store)

	s := activeSession(m)
	ctx := context.Background()
	_, err := m.UpdateFumo(ctx, s.Key, "alice", 0, "Cirno", 5, 0)
	require.NoError(t, err)
	_, err = m.UpdateFumo(ctx, s.Key, "bob", 0, "Cirno", 5, 0)
	require.NoError(t, err)
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleAccept(s.Key, user, 0)
		require.NoError(t, err)
	}
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleConfirm(s.Key, user, 0)
		require.NoError(t, err)
	}

	require.NoError(t, m.Settle(ctx, s.Key))
	require.Equal(t, int64(5), store.fumoTotal("alice", "Cirno"))
	require.Equal(t, int64(5), store.fumoTotal("bob", "Cirno"))
}
