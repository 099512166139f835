package plans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// Repository manages persistence for plan assignments and restrictions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAssignment(ctx context.Context, userID uuid.UUID) (*models.PlanAssignment, error)
	UpsertAssignment(ctx context.Context, assignment *models.PlanAssignment) error
	ListRestrictions(ctx context.Context, planType enums.PlanType) ([]models.PlanRestriction, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plans repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAssignment(ctx context.Context, userID uuid.UUID) (*models.PlanAssignment, error) {
	var assignment models.PlanAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&assignment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) UpsertAssignment(ctx context.Context, assignment *models.PlanAssignment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_type", "status", "period_end", "updated_at",
			}),
		}).
		Create(assignment).Error
}

// ExpireOverdue downgrades premium assignments whose paid period has
// lapsed. Resolution already treats lapsed rows as free; this keeps the
// table consistent with what callers observe.
func (r *repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PlanAssignment{}).
		Where("plan_type = ? AND period_end IS NOT NULL AND period_end < ?", enums.PlanTypePremium, now).
		Updates(map[string]any{
			"plan_type": enums.PlanTypeFree,
			"status":    enums.PlanAssignmentStatusExpired,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ListRestrictions(ctx context.Context, planType enums.PlanType) ([]models.PlanRestriction, error) {
	var restrictions []models.PlanRestriction
	if err := r.db.WithContext(ctx).
		Where("plan_type = ?", planType).
		Find(&restrictions).Error; err != nil {
		return nil, err
	}
	return restrictions, nil
}
