package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// PlanAssignment binds a user to a plan tier. Users without a row are
// treated as free.
type PlanAssignment struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;unique"`
	PlanType  enums.PlanType             `gorm:"column:plan_type;type:plan_type_enum;not null;default:'free'"`
	Status    enums.PlanAssignmentStatus `gorm:"column:status;type:plan_assignment_status;not null;default:'active'"`
	PeriodEnd *time.Time                 `gorm:"column:period_end"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (PlanAssignment) TableName() string {
	return "plan_assignments"
}
