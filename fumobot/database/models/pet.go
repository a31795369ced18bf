package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Pet is atomic: exactly one owner at a time, quantity is always 1.
// Settlement transfers ownership by updating owner_id.
type Pet struct {
	bun.BaseModel `bun:"table:pets,alias:p"`

	ID      int64  `bun:"id,pk,autoincrement"`
	OwnerID string `bun:"owner_id,notnull"`
	Name    string `bun:"name,notnull"`
	Species string `bun:"species,notnull"`
	Level   int    `bun:"level,notnull,default:1"`

	AdoptedAt time.Time `bun:"adopted_at,notnull,default:current_timestamp"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
