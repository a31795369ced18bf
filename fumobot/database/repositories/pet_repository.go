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

type PetRepository interface {
	Create(ctx context.Context, pet *models.Pet) error
	GetByID(ctx context.Context, petID int64) (*models.Pet, error)
	GetUserPets(ctx context.Context, ownerID string) ([]*models.Pet, error)
	IsOwnedBy(ctx context.Context, petID int64, ownerID string) (bool, error)
}

type petRepository struct {
	db *bun.DB
}

func NewPetRepository(db *bun.DB) PetRepository {
	return &petRepository{db: db}
}

func (r *petRepository) Create(ctx context.Context, pet *models.Pet) error {
	pet.CreatedAt = time.Now()
	pet.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(pet).Exec(ctx)
	return err
}

func (r *petRepository) GetByID(ctx context.Context, petID int64) (*models.Pet, error) {
	pet := new(models.Pet)
	err := r.db.NewSelect().
		Model(pet).
		Where("id = ?", petID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pet not found")
		}
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return pet, nil
}

func (r *petRepository) GetUserPets(ctx context.Context, ownerID string) ([]*models.Pet, error) {
	var pets []*models.Pet
	err := r.db.NewSelect().
		Model(&pets).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pets: %w", err)
	}
	return pets, nil
}

func (r *petRepository) IsOwnedBy(ctx context.Context, petID int64, ownerID string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.Pet)(nil)).
		Where("id = ? AND owner_id = ?", petID, ownerID).
		Exists(ctx)
}
