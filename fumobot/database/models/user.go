package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64  `bun:"id,pk,autoincrement"`
	DiscordID string `bun:"discord_id,notnull,unique"`
	Username  string `bun:"username,notnull"`

	// Balances
	Coins int64 `bun:"coins,notnull,default:0"`
	Gems  int64 `bun:"gems,notnull,default:0"`

	// Gacha pity bookkeeping
	PityCount     int       `bun:"pity_count,notnull,default:0"`
	RollsInWindow int       `bun:"rolls_in_window,notnull,default:0"`
	WindowStart   time.Time `bun:"window_start"`
	LastRollAt    time.Time `bun:"last_roll_at"`

	LastDaily time.Time `bun:"last_daily"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
