package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// TokenTransaction records one immutable balance mutation. The sum of all
// amounts for a user always equals that user's current balance.
type TokenTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Amount      int64                 `gorm:"column:amount;not null"`
	Kind        enums.TransactionKind `gorm:"column:kind;type:transaction_kind_enum;not null"`
	Description string                `gorm:"column:description"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name used by GORM.
func (TokenTransaction) TableName() string {
	return "token_transactions"
}
