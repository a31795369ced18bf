package gacha

import "time"

// RarityWeight is one row of the drop table. Higher rarity means rarer;
// weights are relative, not percentages.
type RarityWeight struct {
	Rarity int
	Weight int
}

type Config struct {
	Rarities []RarityWeight

	// PityThreshold rolls without a fumo of at least PityRarity guarantee
	// one on the next roll.
	PityThreshold int
	PityRarity    int

	RollCost       int64
	RollsPerWindow int
	WindowDuration time.Duration

	CacheSize int
	CacheTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Rarities: []RarityWeight{
			{Rarity: 1, Weight: 550},
			{Rarity: 2, Weight: 300},
			{Rarity: 3, Weight: 120},
			{Rarity: 4, Weight: 25},
			{Rarity: 5, Weight: 5},
		},
		PityThreshold:  50,
		PityRarity:     4,
		RollCost:       100,
		RollsPerWindow: 20,
		WindowDuration: time.Hour,
		CacheSize:      64,
		CacheTTL:       10 * time.Minute,
	}
}
