package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is the archivable thread of messages between one user and one
// character. A partial unique index in Postgres guarantees at most one
// active (non-archived) session per (user, character) pair.
type ChatSession struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	CharacterID uuid.UUID `gorm:"column:character_id;type:uuid;not null;index"`
	IsArchived  bool      `gorm:"column:is_archived;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (ChatSession) TableName() string {
	return "chat_sessions"
}
