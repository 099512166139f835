package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// ChatMessage is one append-only message inside a session. Image results
// carry their provider URLs in ImageURLs.
type ChatMessage struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID uuid.UUID         `gorm:"column:session_id;type:uuid;not null;index"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Role      enums.MessageRole `gorm:"column:role;type:message_role_enum;not null"`
	Content   string            `gorm:"column:content;type:text;not null"`
	IsImage   bool              `gorm:"column:is_image;not null;default:false"`
	ImageURLs pq.StringArray    `gorm:"column:image_urls;type:text[]"`
	Metadata  json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table name used by GORM.
func (ChatMessage) TableName() string {
	return "chat_messages"
}
