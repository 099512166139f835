package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// UsageCounter tracks one user's consumption of a rate-limited action
// inside a rolling window. At most one non-expired row exists per
// (user, usage_type); a new window starts a new row.
type UsageCounter struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:idx_usage_counters_user_type"`
	UsageType enums.UsageType `gorm:"column:usage_type;type:usage_type_enum;not null;index:idx_usage_counters_user_type"`
	Count     int64           `gorm:"column:count;not null;default:0"`
	ResetAt   time.Time       `gorm:"column:reset_at;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (UsageCounter) TableName() string {
	return "usage_counters"
}
