package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Fumo struct {
	bun.BaseModel `bun:"table:fumos,alias:f"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Name     string `bun:"name,notnull,unique"`
	Rarity   int    `bun:"rarity,notnull"`
	ImageKey string `bun:"image_key"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// UserFumo is one acquisition batch of a fumo. A user's total for a fumo
// is the sum over their batch rows; trades deduct across rows in id
// order and credit the recipient as a single new batch.
type UserFumo struct {
	bun.BaseModel `bun:"table:user_fumos,alias:uf"`

	ID       int64  `bun:"id,pk,autoincrement"`
	UserID   string `bun:"user_id,notnull"`
	FumoName string `bun:"fumo_name,notnull"`
	Quantity int64  `bun:"quantity,notnull"`

	ObtainedAt time.Time `bun:"obtained_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}
