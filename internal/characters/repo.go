package characters

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
)

// Repository manages persistence for characters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, character *models.Character) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Character, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error)
	CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Update(ctx context.Context, character *models.Character) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a characters repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	var character models.Character
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&character).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &character, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error) {
	var characters []models.Character
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_archived = ?", ownerID, false).
		Order("created_at ASC").
		Find(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *repository) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("owner_id = ? AND is_archived = ?", ownerID, false).
		Count(&count).Error
	return count, err
}

func (r *repository) Update(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Save(character).Error
}
