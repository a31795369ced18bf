package gacha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fumocord/fumobot/fumobot/database/models"
	lru "github.com/hashicorp/golang-lru"
)

var (
	ErrInsufficientCoins = errors.New("not enough coins for a roll")
	ErrNoFumosForRarity  = errors.New("no fumos defined for rolled rarity")
)

// RollLimitError is returned when the rolling window is exhausted.
type RollLimitError struct {
	RetryAfter time.Duration
}

func (e *RollLimitError) Error() string {
	return fmt.Sprintf("roll limit reached, retry in %s", e.RetryAfter.Round(time.Second))
}

// Store is the persistence surface the engine needs: fumo definitions by
// rarity, and atomic roll persistence.
type Store interface {
	GetByRarity(ctx context.Context, rarity int) ([]*models.Fumo, error)

	// ApplyRoll persists one roll in a single transaction: the guarded
	// coin debit, the user's roll bookkeeping and the new batch row.
	// A balance that no longer covers cost fails with
	// ErrInsufficientCoins and nothing is granted.
	ApplyRoll(ctx context.Context, user *models.User, fumoName string, cost int64) error
}

// Result describes one completed roll.
type Result struct {
	Fumo      *models.Fumo
	Rarity    int
	Pity      bool // guaranteed by the pity counter
	Remaining int  // rolls left in the current window
}

// cachedDefs is one cache entry: the definition list for a rarity plus
// when it was fetched.
type cachedDefs struct {
	fumos     []*models.Fumo
	fetchedAt time.Time
}

// Engine rolls fumos from the weighted drop table. Definition lists are
// cached per rarity; the pity counter and rolling window live on the user
// row and are persisted after every roll.
type Engine struct {
	cfg   Config
	store Store
	cache *lru.Cache

	totalWeight int
	pityWeight  int

	// intn is swapped out by tests for deterministic draws.
	intn func(n int) int
	now  func() time.Time
}

func NewEngine(cfg Config, store Store) *Engine {
	cache, _ := lru.New(cfg.CacheSize)
	e := &Engine{
		cfg:   cfg,
		store: store,
		cache: cache,
		intn:  rand.Intn,
		now:   time.Now,
	}
	for _, rw := range cfg.Rarities {
		e.totalWeight += rw.Weight
		if rw.Rarity >= cfg.PityRarity {
			e.pityWeight += rw.Weight
		}
	}
	return e
}

// Cost is the coin price of a single roll.
func (e *Engine) Cost() int64 {
	return e.cfg.RollCost
}

// Roll performs one gacha pull for the user. The caller holds the user
// row loaded; the engine mutates its roll bookkeeping and persists it,
// then credits the rolled fumo as a new batch row.
func (e *Engine) Roll(ctx context.Context, user *models.User) (*Result, error) {
	if user.Coins < e.cfg.RollCost {
		return nil, ErrInsufficientCoins
	}

	now := e.now()

	if now.Sub(user.WindowStart) >= e.cfg.WindowDuration {
		user.WindowStart = now
		user.RollsInWindow = 0
	}
	if user.RollsInWindow >= e.cfg.RollsPerWindow {
		retry := e.cfg.WindowDuration - now.Sub(user.WindowStart)
		return nil, &RollLimitError{RetryAfter: retry}
	}

	pity := user.PityCount >= e.cfg.PityThreshold-1
	rarity := e.drawRarity(pity)

	fumos, err := e.defsForRarity(ctx, rarity)
	if err != nil {
		return nil, err
	}
	if len(fumos) == 0 {
		return nil, fmt.Errorf("%w: rarity %d", ErrNoFumosForRarity, rarity)
	}
	fumo := fumos[e.intn(len(fumos))]

	if rarity >= e.cfg.PityRarity {
		user.PityCount = 0
	} else {
		user.PityCount++
	}
	user.RollsInWindow++
	user.LastRollAt = now

	if err := e.store.ApplyRoll(ctx, user, fumo.Name, e.cfg.RollCost); err != nil {
		return nil, fmt.Errorf("failed to persist roll: %w", err)
	}
	user.Coins -= e.cfg.RollCost

	slog.Info("Gacha roll",
		slog.String("type", "gacha"),
		slog.String("user_id", user.DiscordID),
		slog.String("fumo", fumo.Name),
		slog.Int("rarity", rarity),
		slog.Bool("pity", pity))

	return &Result{
		Fumo:      fumo,
		Rarity:    rarity,
		Pity:      pity,
		Remaining: e.cfg.RollsPerWindow - user.RollsInWindow,
	}, nil
}

// drawRarity picks a rarity from the weighted table. Under pity only the
// guaranteed tiers are in play.
func (e *Engine) drawRarity(pity bool) int {
	total := e.totalWeight
	if pity {
		total = e.pityWeight
	}
	roll := e.intn(total)
	for _, rw := range e.cfg.Rarities {
		if pity && rw.Rarity < e.cfg.PityRarity {
			continue
		}
		if roll < rw.Weight {
			return rw.Rarity
		}
		roll -= rw.Weight
	}
	// Unreachable while weights sum to total.
	return e.cfg.Rarities[len(e.cfg.Rarities)-1].Rarity
}

// defsForRarity returns the definition list for a rarity, via the LRU
// cache with a freshness window.
func (e *Engine) defsForRarity(ctx context.Context, rarity int) ([]*models.Fumo, error) {
	if v, ok := e.cache.Get(rarity); ok {
		entry := v.(cachedDefs)
		if e.now().Sub(entry.fetchedAt) < e.cfg.CacheTTL {
			return entry.fumos, nil
		}
	}

	fumos, err := e.store.GetByRarity(ctx, rarity)
	if err != nil {
		return nil, fmt.Errorf("failed to load fumos for rarity %d: %w", rarity, err)
	}
	e.cache.Add(rarity, cachedDefs{fumos: fumos, fetchedAt: e.now()})
	return fumos, nil
}
