package trading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProposeRejectsSelfAndBots(t *testing.T) {
	m := newTestManager(newFakeStore())

	_, err := m.Propose("alice", "Alice", "alice", "Alice", false)
	require.ErrorIs(t, err, ErrSelfTrade)

	_, err = m.Propose("alice", "Alice", "clanker", "Clanker", true)
	require.ErrorIs(t, err, ErrBotAccount)
}

// One active session per participant: a second proposal involving either
// party must fail and must not disturb the existing session.
func TestSingleSessionPerParticipant(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)
	before := s.Version

	_, err := m.Propose("alice", "Alice", "carol", "Carol", false)
	require.ErrorIs(t, err, ErrAlreadyTrading)

	_, err = m.Propose("carol", "Carol", "bob", "Bob", false)
	require.ErrorIs(t, err, ErrAlreadyTrading)

	live, ok := m.Session(s.Key)
	require.True(t, ok)
	require.Equal(t, before, live.Version)
	require.Equal(t, StateActive, live.State)
}

func TestInviteAcceptance(t *testing.T) {
	m := newTestManager(newFakeStore())
	s, err := m.Propose("alice", "Alice", "bob", "Bob", false)
	require.NoError(t, err)
	require.Equal(t, StatePendingInvite, s.State)

	// Only the invited party may accept.
	_, err = m.AcceptInvite(s.Key, "alice")
	require.ErrorIs(t, err, ErrNotParticipant)

	s, err = m.AcceptInvite(s.Key, "bob")
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State)

	// There is no way back to the invite state.
	_, err = m.AcceptInvite(s.Key, "bob")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateCurrencyBoundsAndBalance(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 50)
	m := newTestManager(store)
	s := activeSession(m)

	tests := []struct {
		name    string
		amount  int64
		wantErr error
	}{
		{name: "negative", amount: -1, wantErr: ErrInvalidAmount},
		{name: "over cap", amount: m.cfg.MaxTradeAmount + 1, wantErr: ErrInvalidAmount},
		{name: "over balance", amount: 100},
		{name: "within balance", amount: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.UpdateCurrency(context.Background(), s.Key, "alice", 0, CurrencyCoins, tt.amount)
			switch tt.name {
			case "over balance":
				var ierr *InsufficientError
				require.ErrorAs(t, err, &ierr)
				require.Equal(t, int64(50), ierr.Have)
				require.Equal(t, int64(100), ierr.Need)
			case "within balance":
				require.NoError(t, err)
			default:
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	// Setting zero clears the entry without error.
	live, err := m.UpdateCurrency(context.Background(), s.Key, "alice", 0, CurrencyCoins, 0)
	require.NoError(t, err)
	require.NotContains(t, live.SideA.Currency, CurrencyCoins)
}

func TestUpdateOfferUnknownSession(t *testing.T) {
	m := newTestManager(newFakeStore())
	_, err := m.UpdateCurrency(context.Background(), "nope:nada", "alice", 0, CurrencyCoins, 10)
	require.ErrorIs(t, err, ErrTradeNotFound)
}

// Any successful mutation drives both sides' consent back to false and
// the state back to ACTIVE.
func TestMutationResetsConsent(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 1000)
	store.setItem("bob", "sword", 5)
	m := newTestManager(store)
	s := activeSession(m)

	_, err := m.ToggleAccept(s.Key, "alice", 0)
	require.NoError(t, err)
	s, err = m.ToggleAccept(s.Key, "bob", 0)
	require.NoError(t, err)
	require.Equal(t, StateBothAccepted, s.State)

	s, err = m.UpdateCurrency(context.Background(), s.Key, "alice", 0, CurrencyCoins, 100)
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State)
	require.False(t, s.SideA.Accepted)
	require.False(t, s.SideB.Accepted)
	require.False(t, s.SideA.Confirmed)
	require.False(t, s.SideB.Confirmed)
}

func TestItemCapAllowsUpdatingExistingEntries(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	s := activeSession(m)

	for i := 0; i < m.cfg.MaxItems; i++ {
		id := string(rune('a' + i))
		store.setItem("alice", id, 10)
		_, err := m.UpdateItem(context.Background(), s.Key, "alice", 0, id, 1)
		require.NoError(t, err)
	}

	store.setItem("alice", "overflow", 10)
	_, err := m.UpdateItem(context.Background(), s.Key, "alice", 0, "overflow", 1)
	require.ErrorIs(t, err, ErrMaxItemsReached)

	// Entries already in the offer may still be adjusted.
	live, err := m.UpdateItem(context.Background(), s.Key, "alice", 0, "a", 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), live.SideA.Items["a"])
}

// Requesting more of a fumo than the live store holds always results in
// exactly the owned amount, however often the mutation is retried.
func TestFumoClampIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addFumoRow("alice", "Cirno", 3)
	store.addFumoRow("alice", "Cirno", 4)
	m := newTestManager(store)
	s := activeSession(m)

	for i := 0; i < 3; i++ {
		live, err := m.UpdateFumo(context.Background(), s.Key, "alice", 0, "Cirno", 50, 0)
		require.NoError(t, err)
		require.Equal(t, int64(7), live.SideA.Fumos["Cirno"])
	}

	// The caller-supplied max clamps below the owned total.
	live, err := m.UpdateFumo(context.Background(), s.Key, "alice", 0, "Cirno", 50, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), live.SideA.Fumos["Cirno"])

	// Owning none clamps the entry away entirely.
	live, err = m.UpdateFumo(context.Background(), s.Key, "alice", 0, "Reimu", 3, 0)
	require.NoError(t, err)
	require.NotContains(t, live.SideA.Fumos, "Reimu")
}

func TestAddPetRequiresOwnership(t *testing.T) {
	store := newFakeStore()
	store.pets[7] = "alice"
	m := newTestManager(store)
	s := activeSession(m)

	_, err := m.AddPet(context.Background(), s.Key, "alice", 0, PetSnapshot{PetID: 9, Name: "ghost"})
	var perr *PetNotFoundError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, int64(9), perr.PetID)

	live, err := m.AddPet(context.Background(), s.Key, "alice", 0, PetSnapshot{PetID: 7, Name: "Chen", Species: "cat"})
	require.NoError(t, err)
	require.Contains(t, live.SideA.Pets, int64(7))

	live, err = m.RemovePet(s.Key, "alice", 0, 7)
	require.NoError(t, err)
	require.NotContains(t, live.SideA.Pets, int64(7))
}

// Confirm before both sides accepted always fails and never flips the
// flag.
func TestConfirmRequiresBothAccepted(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	_, err := m.ToggleConfirm(s.Key, "alice", 0)
	require.ErrorIs(t, err, ErrNotBothAccepted)
	require.False(t, s.SideA.Confirmed)

	_, err = m.ToggleAccept(s.Key, "alice", 0)
	require.NoError(t, err)
	_, err = m.ToggleConfirm(s.Key, "alice", 0)
	require.ErrorIs(t, err, ErrNotBothAccepted)
	require.False(t, s.SideA.Confirmed)
}

func TestConfirmRetractableUntilBothConfirmed(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	_, err := m.ToggleAccept(s.Key, "alice", 0)
	require.NoError(t, err)
	_, err = m.ToggleAccept(s.Key, "bob", 0)
	require.NoError(t, err)

	s, err = m.ToggleConfirm(s.Key, "alice", 0)
	require.NoError(t, err)
	require.True(t, s.SideA.Confirmed)
	require.Equal(t, StateBothAccepted, s.State)

	// Retract before bob confirms.
	s, err = m.ToggleConfirm(s.Key, "alice", 0)
	require.NoError(t, err)
	require.False(t, s.SideA.Confirmed)

	_, err = m.ToggleConfirm(s.Key, "alice", 0)
	require.NoError(t, err)
	s, err = m.ToggleConfirm(s.Key, "bob", 0)
	require.NoError(t, err)
	require.Equal(t, StateConfirming, s.State)

	// Once the grace timer is armed, confirm is no longer toggleable.
	_, err = m.ToggleConfirm(s.Key, "alice", 0)
	require.ErrorIs(t, err, ErrNotBothAccepted)
}

func TestUnacceptDropsBothAccepted(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	_, err := m.ToggleAccept(s.Key, "alice", 0)
	require.NoError(t, err)
	s, err = m.ToggleAccept(s.Key, "bob", 0)
	require.NoError(t, err)
	require.Equal(t, StateBothAccepted, s.State)

	s, err = m.ToggleAccept(s.Key, "alice", 0)
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State)
	require.False(t, s.SideA.Accepted)
	require.True(t, s.SideB.Accepted)
}

func TestVersionMismatchRejectsStaleMutation(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 1000)
	m := newTestManager(store)
	s := activeSession(m)

	stale := s.Version
	_, err := m.UpdateCurrency(context.Background(), s.Key, "alice", 0, CurrencyCoins, 100)
	require.NoError(t, err)

	_, err = m.UpdateCurrency(context.Background(), s.Key, "alice", stale, CurrencyCoins, 200)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestCancelReleasesTradingSlots(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	_, err := m.Cancel(s.Key, "mallory")
	require.ErrorIs(t, err, ErrNotParticipant)

	cancelled, err := m.Cancel(s.Key, "bob")
	require.NoError(t, err)
	require.Equal(t, StateCancelled, cancelled.State)

	_, ok := m.Session(s.Key)
	require.False(t, ok)

	// Both parties are free to trade again.
	_, err = m.Propose("alice", "Alice", "carol", "Carol", false)
	require.NoError(t, err)
	_, err = m.Propose("bob", "Bob", "dave", "Dave", false)
	require.NoError(t, err)
}

func TestGraceTimerSettlesAutomatically(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 100)
	store.setBalance("bob", CurrencyCoins, 0)

	cfg := DefaultConfig()
	cfg.GraceDelay = 10 * time.Millisecond
	m := NewManager(cfg, NewSessionStore(), store, store)

	s := activeSession(m)
	_, err := m.UpdateCurrency(context.Background(), s.Key, "alice", 0, CurrencyCoins, 100)
	require.NoError(t, err)
	_, err = m.ToggleAccept(s.Key, "alice", 0)
	require.NoError(t, err)
	_, err = m.ToggleAccept(s.Key, "bob", 0)
	require.NoError(t, err)
	_, err = m.ToggleConfirm(s.Key, "alice", 0)
	require.NoError(t, err)
	_, err = m.ToggleConfirm(s.Key, "bob", 0)
	require.NoError(t, err)

	// Session removal happens after the settlement transaction, so once
	// the session is gone the fake store is quiescent.
	require.Eventually(t, func() bool {
		_, ok := m.Session(s.Key)
		return !ok
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, int64(0), store.balances["alice"][CurrencyCoins])
	require.Equal(t, int64(100), store.balances["bob"][CurrencyCoins])
}

func TestCancelDuringGraceWindowAbortsSettlement(t *testing.T) {
	store := newFakeStore()
	store.setBalance("alice", CurrencyCoins, 100)

	cfg := DefaultConfig()
	cfg.GraceDelay = 50 * time.Millisecond
	m := NewManager(cfg, NewSessionStore(), store, store)

	s := activeSession(m)
	_, err := m.UpdateCurrency(context.Background(), s.Key, "alice", 0, CurrencyCoins, 100)
	require.NoError(t, err)
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleAccept(s.Key, user, 0)
		require.NoError(t, err)
	}
	for _, user := range []string{"alice", "bob"} {
		_, err = m.ToggleConfirm(s.Key, user, 0)
		require.NoError(t, err)
	}

	_, err = m.Cancel(s.Key, "alice")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int64(100), store.balances["alice"][CurrencyCoins])
	require.Zero(t, store.settleCalls)
}
