package characters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
)

const (
	// MemoryLevel bounds for premium history replay.
	MinMemoryLevel = 1
	MaxMemoryLevel = 3
)

// Service manages AI personas.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Character, error)
	Get(ctx context.Context, ownerID, characterID uuid.UUID) (*models.Character, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error)
	Update(ctx context.Context, input UpdateInput) (*models.Character, error)
	Archive(ctx context.Context, ownerID, characterID uuid.UUID) error
}

// planResolver is the slice of the plans service Create needs for the
// active companion cap.
type planResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*plans.Resolution, error)
}

// ServiceParams groups dependencies for the characters service.
type ServiceParams struct {
	Repo  Repository
	Plans planResolver
}

// CreateInput describes a new persona.
type CreateInput struct {
	OwnerID     uuid.UUID
	Name        string
	Persona     string
	MemoryLevel int
}

// UpdateInput describes a persona edit. Nil fields are left untouched.
type UpdateInput struct {
	OwnerID     uuid.UUID
	CharacterID uuid.UUID
	Name        *string
	Persona     *string
	MemoryLevel *int
}

type service struct {
	repo  Repository
	plans planResolver
}

// NewService wires a characters service. Plans is optional; without it the
// companion cap is not enforced.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("characters repository required")
	}
	return &service{repo: params.Repo, plans: params.Plans}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Character, error) {
	if input.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("owner id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "character name is required")
	}
	persona := strings.TrimSpace(input.Persona)
	if persona == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "character persona is required")
	}
	level := input.MemoryLevel
	if level == 0 {
		level = MinMemoryLevel
	}
	if level < MinMemoryLevel || level > MaxMemoryLevel {
		return nil, apperrors.New(apperrors.CodeValidation, "memory level out of range").
			WithDetails(map[string]any{"min": MinMemoryLevel, "max": MaxMemoryLevel})
	}

	if err := s.checkCompanionCap(ctx, input.OwnerID); err != nil {
		return nil, err
	}

	character := &models.Character{
		OwnerID:     input.OwnerID,
		Name:        name,
		Persona:     persona,
		MemoryLevel: level,
	}
	if err := s.repo.Create(ctx, character); err != nil {
		return nil, err
	}
	return character, nil
}

// checkCompanionCap counts non-archived characters against the plan's
// active_companions_limit restriction. Unlimited plans skip the count.
func (s *service) checkCompanionCap(ctx context.Context, ownerID uuid.UUID) error {
	if s.plans == nil {
		return nil
	}
	resolution, err := s.plans.Resolve(ctx, ownerID)
	if err != nil {
		return err
	}
	limit, bounded := resolution.Limit(plans.KeyCompanionLimit)
	if !bounded {
		return nil
	}
	count, err := s.repo.CountActiveByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if count >= limit {
		return apperrors.New(apperrors.CodeLimitReached, "active companion limit reached").
			WithDetails(map[string]any{"limit": limit, "current": count})
	}
	return nil
}

// Get loads a character and enforces ownership.
func (s *service) Get(ctx context.Context, ownerID, characterID uuid.UUID) (*models.Character, error) {
	if ownerID == uuid.Nil || characterID == uuid.Nil {
		return nil, fmt.Errorf("owner and character ids are required")
	}
	character, err := s.repo.GetByID(ctx, characterID)
	if err != nil {
		return nil, err
	}
	if character == nil || character.IsArchived {
		return nil, apperrors.New(apperrors.CodeNotFound, "character not found")
	}
	if character.OwnerID != ownerID {
		return nil, apperrors.New(apperrors.CodeForbidden, "character belongs to another user")
	}
	return character, nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner id is required")
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Character, error) {
	character, err := s.Get(ctx, input.OwnerID, input.CharacterID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "character name cannot be empty")
		}
		character.Name = name
	}
	if input.Persona != nil {
		persona := strings.TrimSpace(*input.Persona)
		if persona == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "character persona cannot be empty")
		}
		character.Persona = persona
	}
	if input.MemoryLevel != nil {
		if *input.MemoryLevel < MinMemoryLevel || *input.MemoryLevel > MaxMemoryLevel {
			return nil, apperrors.New(apperrors.CodeValidation, "memory level out of range")
		}
		character.MemoryLevel = *input.MemoryLevel
	}

	if err := s.repo.Update(ctx, character); err != nil {
		return nil, err
	}
	return character, nil
}

func (s *service) Archive(ctx context.Context, ownerID, characterID uuid.UUID) error {
	character, err := s.Get(ctx, ownerID, characterID)
	if err != nil {
		return err
	}
	character.IsArchived = true
	return s.repo.Update(ctx, character)
}
