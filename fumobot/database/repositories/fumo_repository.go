package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/uptrace/bun"
)

type FumoRepository interface {
	GetAll(ctx context.Context) ([]*models.Fumo, error)
	GetByRarity(ctx context.Context, rarity int) ([]*models.Fumo, error)

	GetUserFumos(ctx context.Context, userID string) ([]*models.UserFumo, error)
	AddBatch(ctx context.Context, userID, name string, quantity int64) error
}

type fumoRepository struct {
	db *bun.DB
}

func NewFumoRepository(db *bun.DB) FumoRepository {
	return &fumoRepository{db: db}
}

func (r *fumoRepository) GetAll(ctx context.Context) ([]*models.Fumo, error) {
	var fumos []*models.Fumo
	err := r.db.NewSelect().
		Model(&fumos).
		Order("rarity DESC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fumos: %w", err)
	}
	return fumos, nil
}

func (r *fumoRepository) GetByRarity(ctx context.Context, rarity int) ([]*models.Fumo, error) {
	var fumos []*models.Fumo
	err := r.db.NewSelect().
		Model(&fumos).
		Where("rarity = ?", rarity).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fumos by rarity: %w", err)
	}
	return fumos, nil
}

func (r *fumoRepository) GetUserFumos(ctx context.Context, userID string) ([]*models.UserFumo, error) {
	var rows []*models.UserFumo
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("quantity > 0").
		Order("fumo_name ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user fumos: %w", err)
	}
	return rows, nil
}

func (r *fumoRepository) AddBatch(ctx context.Context, userID, name string, quantity int64) error {
	row := &models.UserFumo{
		UserID:     userID,
		FumoName:   name,
		Quantity:   quantity,
		ObtainedAt: time.Now(),
		UpdatedAt:  time.Now(),
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to add fumo batch: %w", err)
	}
	return nil
}
