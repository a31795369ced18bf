package gacha

import (
	"context"
	"testing"
	"time"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/stretchr/testify/require"
)

type fakeGachaStore struct {
	defs        map[int][]*models.Fumo
	rarityCalls map[int]int
	batches     []string
	charges     []int64
	rollStates  int
	applyErr    error
}

func newFakeGachaStore() *fakeGachaStore {
	return &fakeGachaStore{
		defs: map[int][]*models.Fumo{
			1: {{Name: "Common Cirno", Rarity: 1}, {Name: "Common Reimu", Rarity: 1}},
			2: {{Name: "Rare Marisa", Rarity: 2}},
			3: {{Name: "Epic Sakuya", Rarity: 3}},
			4: {{Name: "SR Flandre", Rarity: 4}},
			5: {{Name: "UR Yukari", Rarity: 5}},
		},
		rarityCalls: make(map[int]int),
	}
}

func (f *fakeGachaStore) GetByRarity(_ context.Context, rarity int) ([]*models.Fumo, error) {
	f.rarityCalls[rarity]++
	return f.defs[rarity], nil
}

func (f *fakeGachaStore) ApplyRoll(_ context.Context, user *models.User, name string, cost int64) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.charges = append(f.charges, cost)
	f.batches = append(f.batches, user.DiscordID+"/"+name)
	f.rollStates++
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Rarities = []RarityWeight{
		{Rarity: 1, Weight: 90},
		{Rarity: 4, Weight: 9},
		{Rarity: 5, Weight: 1},
	}
	cfg.PityThreshold = 5
	cfg.PityRarity = 4
	cfg.RollsPerWindow = 100
	return cfg
}

func testUser() *models.User {
	return &models.User{DiscordID: "alice", Username: "Alice", Coins: 100_000, WindowStart: time.Now()}
}

func TestRollRequiresRollCost(t *testing.T) {
	e := NewEngine(testConfig(), newFakeGachaStore())

	user := testUser()
	user.Coins = e.Cost() - 1
	_, err := e.Roll(context.Background(), user)
	require.ErrorIs(t, err, ErrInsufficientCoins)
}

func TestRollChargesCostWithTheGrant(t *testing.T) {
	store := newFakeGachaStore()
	e := NewEngine(testConfig(), store)
	e.intn = func(int) int { return 0 }

	user := testUser()
	before := user.Coins
	_, err := e.Roll(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, []int64{e.Cost()}, store.charges)
	require.Equal(t, before-e.Cost(), user.Coins)
}

func TestRollGrantsNothingWhenStoreRejectsCharge(t *testing.T) {
	store := newFakeGachaStore()
	store.applyErr = ErrInsufficientCoins
	e := NewEngine(testConfig(), store)
	e.intn = func(int) int { return 0 }

	user := testUser()
	before := user.Coins
	_, err := e.Roll(context.Background(), user)
	require.ErrorIs(t, err, ErrInsufficientCoins)
	require.Empty(t, store.batches)
	require.Equal(t, before, user.Coins)
}

func TestDrawRarityRespectsWeights(t *testing.T) {
	e := NewEngine(testConfig(), newFakeGachaStore())

	tests := []struct {
		name string
		roll int
		want int
	}{
		{name: "low roll lands common", roll: 0, want: 1},
		{name: "edge of common band", roll: 89, want: 1},
		{name: "first rare slot", roll: 90, want: 4},
		{name: "top slot", roll: 99, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.intn = func(int) int { return tt.roll }
			require.Equal(t, tt.want, e.drawRarity(false))
		})
	}
}

func TestDrawRarityUnderPityExcludesLowTiers(t *testing.T) {
	e := NewEngine(testConfig(), newFakeGachaStore())

	// Pity pool is 9+1=10: every draw must land on rarity 4 or 5.
	for roll := 0; roll < 10; roll++ {
		e.intn = func(int) int { return roll }
		got := e.drawRarity(true)
		require.GreaterOrEqual(t, got, 4, "roll %d", roll)
	}
}

func TestRollCreditsBatchAndPersistsState(t *testing.T) {
	store := newFakeGachaStore()
	e := NewEngine(testConfig(), store)
	e.intn = func(int) int { return 0 }

	user := testUser()
	res, err := e.Roll(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, "Common Cirno", res.Fumo.Name)
	require.Equal(t, 1, res.Rarity)
	require.False(t, res.Pity)
	require.Equal(t, []string{"alice/Common Cirno"}, store.batches)
	require.Equal(t, 1, store.rollStates)
	require.Equal(t, 1, user.RollsInWindow)
	require.Equal(t, 1, user.PityCount)
}

func TestPityGuaranteesHighRarity(t *testing.T) {
	store := newFakeGachaStore()
	cfg := testConfig()
	e := NewEngine(cfg, store)
	e.intn = func(int) int { return 0 } // always the common band when free

	user := testUser()
	for i := 0; i < cfg.PityThreshold-1; i++ {
		res, err := e.Roll(context.Background(), user)
		require.NoError(t, err)
		require.Equal(t, 1, res.Rarity)
	}
	require.Equal(t, cfg.PityThreshold-1, user.PityCount)

	res, err := e.Roll(context.Background(), user)
	require.NoError(t, err)
	require.True(t, res.Pity)
	require.GreaterOrEqual(t, res.Rarity, cfg.PityRarity)
	require.Zero(t, user.PityCount)
}

func TestHighRarityRollResetsPity(t *testing.T) {
	store := newFakeGachaStore()
	e := NewEngine(testConfig(), store)

	user := testUser()
	user.PityCount = 3

	e.intn = func(n int) int { return n - 1 } // top slot: rarity 5
	res, err := e.Roll(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, 5, res.Rarity)
	require.Zero(t, user.PityCount)
}

func TestRollWindowLimitAndReset(t *testing.T) {
	store := newFakeGachaStore()
	cfg := testConfig()
	cfg.RollsPerWindow = 2
	e := NewEngine(cfg, store)
	e.intn = func(int) int { return 0 }

	base := time.Now()
	e.now = func() time.Time { return base }

	user := testUser()
	user.WindowStart = base

	for i := 0; i < 2; i++ {
		_, err := e.Roll(context.Background(), user)
		require.NoError(t, err)
	}

	_, err := e.Roll(context.Background(), user)
	var lerr *RollLimitError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, cfg.WindowDuration, lerr.RetryAfter)

	// A new window opens once the duration elapses.
	e.now = func() time.Time { return base.Add(cfg.WindowDuration) }
	res, err := e.Roll(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, cfg.RollsPerWindow-1, res.Remaining)
}

func TestDefinitionCacheAvoidsRepeatLookups(t *testing.T) {
	store := newFakeGachaStore()
	e := NewEngine(testConfig(), store)
	e.intn = func(int) int { return 0 }

	user := testUser()
	for i := 0; i < 5; i++ {
		_, err := e.Roll(context.Background(), user)
		require.NoError(t, err)
	}
	require.Equal(t, 1, store.rarityCalls[1])
}
