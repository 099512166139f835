package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
)

// Repository persists chat sessions and their messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetOrCreateActiveSession(ctx context.Context, userID, characterID uuid.UUID) (*models.ChatSession, error)
	GetActiveSession(ctx context.Context, userID, characterID uuid.UUID) (*models.ChatSession, error)
	ArchiveActiveSession(ctx context.Context, userID, characterID uuid.UUID) (bool, error)

	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error)
	ListSessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a GORM-backed conversation repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// GetOrCreateActiveSession resolves the single active session for the pair,
// creating one if none exists. The insert targets the partial unique index on
// (user_id, character_id) WHERE is_archived = FALSE, so two racing first
// messages converge on one session. The predicate must be a literal: a
// parameterized conflict target cannot be matched against the index
// definition by the store.
func (r *repository) GetOrCreateActiveSession(ctx context.Context, userID, characterID uuid.UUID) (*models.ChatSession, error) {
	session := models.ChatSession{
		ID:          uuid.New(),
		UserID:      userID,
		CharacterID: characterID,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "character_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "is_archived = FALSE"},
			}},
			DoNothing: true,
		}).
		Create(&session).Error
	if err != nil {
		return nil, err
	}

	var active models.ChatSession
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ? AND is_archived = ?", userID, characterID, false).
		First(&active).Error
	if err != nil {
		return nil, err
	}
	return &active, nil
}

// GetActiveSession returns the active session or nil when none exists.
func (r *repository) GetActiveSession(ctx context.Context, userID, characterID uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ? AND is_archived = ?", userID, characterID, false).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ArchiveActiveSession soft-closes the active session. Messages stay put; the
// next send starts a fresh session.
func (r *repository) ArchiveActiveSession(ctx context.Context, userID, characterID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("user_id = ? AND character_id = ? AND is_archived = ?", userID, characterID, false).
		Update("is_archived", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

// ListRecentMessages returns the newest limit messages in chronological
// order, ready to replay to the provider.
func (r *repository) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	query := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListSessionMessages returns messages oldest first for API reads.
func (r *repository) ListSessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	query := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
