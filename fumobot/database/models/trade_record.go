package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TradeRecord is the durable log row written inside the settlement
// transaction. Trade sessions themselves are never persisted.
type TradeRecord struct {
	bun.BaseModel `bun:"table:trade_records,alias:tr"`

	ID       int64  `bun:"id,pk,autoincrement"`
	TradeKey string `bun:"trade_key,notnull"`
	UserA    string `bun:"user_a,notnull"`
	UserB    string `bun:"user_b,notnull"`
	Summary  string `bun:"summary"`

	CompletedAt time.Time `bun:"completed_at,notnull,default:current_timestamp"`
}
