package models

import (
	"time"

	"github.com/google/uuid"
)

// Character is an AI persona owned by a user. MemoryLevel tunes how much
// prior conversation is replayed to the provider for premium users.
type Character struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Persona     string    `gorm:"column:persona;type:text;not null"`
	MemoryLevel int       `gorm:"column:memory_level;not null;default:1"`
	IsArchived  bool      `gorm:"column:is_archived;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name used by GORM.
func (Character) TableName() string {
	return "characters"
}
