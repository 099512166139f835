package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountBalance holds the current token balance for one user.
// The row is only ever mutated through the ledger service; the balance
// column is guarded by a CHECK (balance >= 0) constraint in Postgres.
type AccountBalance struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (AccountBalance) TableName() string {
	return "account_balances"
}
