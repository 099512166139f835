package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// CostEntry logs real external provider spend for one generation. It is
// independent of the token ledger: tokens are the user-visible currency,
// APICost is what the provider billed us. The budget guard aggregates these
// rows over the current calendar month.
type CostEntry struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Action     enums.CostAction `gorm:"column:action;type:cost_action_enum;not null;index"`
	TokensUsed int64            `gorm:"column:tokens_used;not null;default:0"`
	APICost    decimal.Decimal  `gorm:"column:api_cost;type:numeric(12,6);not null"`
	UserID     *uuid.UUID       `gorm:"column:user_id;type:uuid"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName pins the table name used by GORM.
func (CostEntry) TableName() string {
	return "cost_entries"
}
