package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// PlanRestriction is one named tunable scoped to a plan tier, e.g.
// daily_message_limit or tokens_per_image. Values are stored as text; a
// missing row, the literal "null", or a non-positive number all mean
// "unlimited".
type PlanRestriction struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PlanType  enums.PlanType `gorm:"column:plan_type;type:plan_type_enum;not null;uniqueIndex:idx_plan_restrictions_plan_key"`
	Key       string         `gorm:"column:key;not null;uniqueIndex:idx_plan_restrictions_plan_key"`
	Value     string         `gorm:"column:value"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (PlanRestriction) TableName() string {
	return "plan_restrictions"
}
