package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fumocord/fumobot/fumobot/database/models"
	"github.com/uptrace/bun"
)

// ErrInsufficientFunds is returned by guarded debits when the live
// balance no longer covers the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	GetOrCreate(ctx context.Context, discordID, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	AddCoins(ctx context.Context, discordID string, delta int64) error
	SpendCoins(ctx context.Context, discordID string, amount int64) error
	AddGems(ctx context.Context, discordID string, delta int64) error
	GetBalances(ctx context.Context, discordID string) (coins int64, gems int64, err error)
	GetTopUsers(ctx context.Context, limit int) ([]*models.User, error)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("discord_id = ?", discordID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetOrCreate(ctx context.Context, discordID, username string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("discord_id = ?", discordID).
		Scan(ctx)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user = &models.User{
		DiscordID: discordID,
		Username:  username,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)
	return err
}

func (r *userRepository) AddCoins(ctx context.Context, discordID string, delta int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("coins = coins + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ?", discordID).
		Exec(ctx)
	return err
}

// SpendCoins debits with a balance guard, so concurrent spends can never
// drive the balance negative.
func (r *userRepository) SpendCoins(ctx context.Context, discordID string, amount int64) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("coins = coins - ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ? AND coins >= ?", discordID, amount).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *userRepository) AddGems(ctx context.Context, discordID string, delta int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("gems = gems + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("discord_id = ?", discordID).
		Exec(ctx)
	return err
}

func (r *userRepository) GetBalances(ctx context.Context, discordID string) (int64, int64, error) {
	var user models.User
	err := r.db.NewSelect().
		Model(&user).
		Column("coins", "gems").
		Where("discord_id = ?", discordID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	return user.Coins, user.Gems, nil
}

func (r *userRepository) GetTopUsers(ctx context.Context, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		OrderExpr("coins DESC").
		Limit(limit).
		Scan(ctx)
	return users, err
}
