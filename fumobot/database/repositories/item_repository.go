package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/uptrace/bun"
)

type ItemRepository interface {
	GetByID(ctx context.Context, id string) (*models.Item, error)
	GetAll(ctx context.Context) ([]*models.Item, error)

	GetUserItems(ctx context.Context, userID string) ([]*models.UserItem, error)
	GetUserItem(ctx context.Context, userID, itemID string) (*models.UserItem, error)
	AddUserItem(ctx context.Context, userID, itemID string, quantity int64) error
}

type itemRepository struct {
	db *bun.DB
}

func NewItemRepository(db *bun.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := r.db.NewSelect().
		Model(&item).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) GetAll(ctx context.Context) ([]*models.Item, error) {
	var items []*models.Item
	err := r.db.NewSelect().
		Model(&items).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) GetUserItems(ctx context.Context, userID string) ([]*models.UserItem, error) {
	var userItems []*models.UserItem
	err := r.db.NewSelect().
		Model(&userItems).
		Where("user_id = ?", userID).
		Where("quantity > 0").
		Relation("Item").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return userItems, nil
}

func (r *itemRepository) GetUserItem(ctx context.Context, userID, itemID string) (*models.UserItem, error) {
	var userItem models.UserItem
	err := r.db.NewSelect().
		Model(&userItem).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Relation("Item").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &userItem, nil
}

func (r *itemRepository) AddUserItem(ctx context.Context, userID, itemID string, quantity int64) error {
	existing, err := r.GetUserItem(ctx, userID, itemID)
	if err != nil {
		return err
	}

	if existing != nil {
		_, err = r.db.NewUpdate().
			Model((*models.UserItem)(nil)).
			Set("quantity = quantity + ?", quantity).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("user_id = ? AND item_id = ?", userID, itemID).
			Exec(ctx)
		return err
	}

	userItem := &models.UserItem{
		UserID:   userID,
		ItemID:   itemID,
		Quantity: quantity,
	}
	if _, err := r.db.NewInsert().Model(userItem).Exec(ctx); err != nil {
		return fmt.Errorf("failed to add item %s: %w", itemID, err)
	}
	return nil
}
