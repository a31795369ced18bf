package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/fumocord/fumobot/fumobot/gacha"
)

// NewGachaStore backs the gacha engine with Postgres. Definition reads
// go through the fumo repository; roll persistence is one transaction so
// a fumo is never granted without its cost being paid.
func NewGachaStore(db *bun.DB, fumos FumoRepository) gacha.Store {
	return &gachaStore{db: db, fumos: fumos}
}

type gachaStore struct {
	db    *bun.DB
	fumos FumoRepository
}

func (s *gachaStore) GetByRarity(ctx context.Context, rarity int) ([]*models.Fumo, error) {
	return s.fumos.GetByRarity(ctx, rarity)
}

func (s *gachaStore) ApplyRoll(ctx context.Context, user *models.User, fumoName string, cost int64) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if cost > 0 {
			res, err := tx.NewUpdate().
				Model((*models.User)(nil)).
				Set("coins = coins - ?", cost).
				Set("updated_at = ?", time.Now()).
				Where("discord_id = ? AND coins >= ?", user.DiscordID, cost).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to charge roll: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return gacha.ErrInsufficientCoins
			}
		}

		if _, err := tx.NewUpdate().
			Model(user).
			Column("pity_count", "rolls_in_window", "window_start", "last_roll_at", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to persist roll state: %w", err)
		}

		row := &models.UserFumo{
			UserID:     user.DiscordID,
			FumoName:   fumoName,
			Quantity:   1,
			ObtainedAt: time.Now(),
			UpdatedAt:  time.Now(),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to credit fumo: %w", err)
		}
		return nil
	})
}
