package characters

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
)

type fakeRepo struct {
	byID    map[uuid.UUID]*models.Character
	created *models.Character
	updated *models.Character
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]*models.Character{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, character *models.Character) error {
	character.ID = uuid.New()
	f.created = character
	f.byID[character.ID] = character
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	return f.byID[id], nil
}

func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error) {
	var out []models.Character
	for _, c := range f.byID {
		if c.OwnerID == ownerID && !c.IsArchived {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	list, _ := f.ListByOwner(ctx, ownerID)
	return int64(len(list)), nil
}

func (f *fakeRepo) Update(ctx context.Context, character *models.Character) error {
	f.updated = character
	f.byID[character.ID] = character
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestCreate_DefaultsMemoryLevel(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	character, err := svc.Create(context.Background(), CreateInput{
		OwnerID: uuid.New(),
		Name:    "Mira",
		Persona: "A thoughtful painter who speaks in metaphors.",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if character.MemoryLevel != MinMemoryLevel {
		t.Fatalf("expected default memory level, got %d", character.MemoryLevel)
	}
}

func TestCreate_RejectsOutOfRangeMemoryLevel(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	_, err := svc.Create(context.Background(), CreateInput{
		OwnerID:     uuid.New(),
		Name:        "Mira",
		Persona:     "persona",
		MemoryLevel: 4,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type fakePlanResolver struct {
	resolution *plans.Resolution
}

func (f *fakePlanResolver) Resolve(ctx context.Context, userID uuid.UUID) (*plans.Resolution, error) {
	return f.resolution, nil
}

func TestCreate_EnforcesCompanionCap(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakePlanResolver{resolution: &plans.Resolution{
		PlanType:     enums.PlanTypeFree,
		Restrictions: map[string]string{plans.KeyCompanionLimit: "1"},
	}}
	svc, err := NewService(ServiceParams{Repo: repo, Plans: resolver})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	ownerID := uuid.New()
	first, err := svc.Create(context.Background(), CreateInput{
		OwnerID: ownerID,
		Name:    "Mira",
		Persona: "persona",
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err = svc.Create(context.Background(), CreateInput{
		OwnerID: ownerID,
		Name:    "Noa",
		Persona: "persona",
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeLimitReached {
		t.Fatalf("expected limit reached, got %v", err)
	}

	// archiving frees a slot
	if err := svc.Archive(context.Background(), ownerID, first.ID); err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{
		OwnerID: ownerID,
		Name:    "Noa",
		Persona: "persona",
	}); err != nil {
		t.Fatalf("create after archive failed: %v", err)
	}
}

func TestCreate_UnlimitedPlanSkipsCap(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakePlanResolver{resolution: &plans.Resolution{
		PlanType:     enums.PlanTypePremium,
		Restrictions: map[string]string{plans.KeyCompanionLimit: "null"},
	}}
	svc, err := NewService(ServiceParams{Repo: repo, Plans: resolver})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	ownerID := uuid.New()
	for _, name := range []string{"Mira", "Noa", "Iris", "Vale"} {
		if _, err := svc.Create(context.Background(), CreateInput{
			OwnerID: ownerID,
			Name:    name,
			Persona: "persona",
		}); err != nil {
			t.Fatalf("create %s failed: %v", name, err)
		}
	}
}

func TestGet_EnforcesOwnership(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	ownerID := uuid.New()
	character, err := svc.Create(context.Background(), CreateInput{
		OwnerID: ownerID,
		Name:    "Mira",
		Persona: "persona",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Get(context.Background(), ownerID, character.ID); err != nil {
		t.Fatalf("owner access failed: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New(), character.ID)
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestArchive_HidesFromGetAndList(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	ownerID := uuid.New()
	character, err := svc.Create(context.Background(), CreateInput{
		OwnerID: ownerID,
		Name:    "Mira",
		Persona: "persona",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := svc.Archive(context.Background(), ownerID, character.ID); err != nil {
		t.Fatalf("Archive error: %v", err)
	}

	_, err = svc.Get(context.Background(), ownerID, character.ID)
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeNotFound {
		t.Fatalf("archived character must read as not found, got %v", err)
	}

	list, err := svc.List(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("archived character must not be listed, got %d", len(list))
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	ownerID := uuid.New()
	character, err := svc.Create(context.Background(), CreateInput{
		OwnerID:     ownerID,
		Name:        "Mira",
		Persona:     "persona",
		MemoryLevel: 2,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	newName := "Mira II"
	updated, err := svc.Update(context.Background(), UpdateInput{
		OwnerID:     ownerID,
		CharacterID: character.ID,
		Name:        &newName,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Name != newName || updated.Persona != "persona" || updated.MemoryLevel != 2 {
		t.Fatalf("partial update corrupted fields: %+v", updated)
	}
}
