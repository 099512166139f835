package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// Repository manages persistence for usage counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetActive(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, now time.Time) (*models.UsageCounter, error)
	Increment(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, now, resetAt time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetActive(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, now time.Time) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND usage_type = ? AND reset_at > ?", userID, usageType, now).
		Order("reset_at DESC").
		First(&counter).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &counter, nil
}

// Increment bumps the active counter or opens a fresh window. The UPDATE
// against the non-expired row keeps concurrent bumps additive; only when no
// live row exists is a new one inserted.
func (r *repository) Increment(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, now, resetAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.UsageCounter{}).
		Where("user_id = ? AND usage_type = ? AND reset_at > ?", userID, usageType, now).
		Update("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&models.UsageCounter{
		ID:        uuid.New(),
		UserID:    userID,
		UsageType: usageType,
		Count:     1,
		ResetAt:   resetAt,
	}).Error
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("reset_at <= ?", before).
		Delete(&models.UsageCounter{})
	return res.RowsAffected, res.Error
}
