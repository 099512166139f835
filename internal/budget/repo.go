package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// Repository aggregates recorded provider spend.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	RecordCost(ctx context.Context, entry *models.CostEntry) error
	SumCosts(ctx context.Context, since time.Time) (decimal.Decimal, error)
	CountActions(ctx context.Context, action enums.CostAction, since time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a budget repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) RecordCost(ctx context.Context, entry *models.CostEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) SumCosts(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).
		Model(&models.CostEntry{}).
		Where("created_at >= ?", since).
		Select("SUM(api_cost)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil || *raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func (r *repository) CountActions(ctx context.Context, action enums.CostAction, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CostEntry{}).
		Where("action = ? AND created_at >= ?", action, since).
		Count(&count).Error
	return count, err
}
