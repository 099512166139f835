package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/api/middleware"
	"github.com/lumora-ai/companion-backend/internal/characters"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	pkgerrors "github.com/lumora-ai/companion-backend/pkg/errors"
)

func TestCharacterCreate(t *testing.T) {
	logg := testControllerLogger()
	ownerID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubCharacterService{
			character: &models.Character{ID: uuid.New(), Name: "Mira", Persona: "warm and curious", MemoryLevel: 2},
		}
		body := `{"name":"Mira","persona":"warm and curious","memory_level":2}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/characters", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(middleware.WithUserID(req.Context(), ownerID.String()))
		rec := httptest.NewRecorder()
		CharacterCreate(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.createInput.OwnerID != ownerID || stub.createInput.Name != "Mira" {
			t.Fatalf("unexpected create input %+v", stub.createInput)
		}
		var envelope struct {
			Data characterView `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if envelope.Data.Name != "Mira" || envelope.Data.MemoryLevel != 2 {
			t.Fatalf("unexpected view %+v", envelope.Data)
		}
	})

	t.Run("missing name rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/characters", strings.NewReader(`{"persona":"warm"}`))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(middleware.WithUserID(req.Context(), ownerID.String()))
		rec := httptest.NewRecorder()
		CharacterCreate(&stubCharacterService{}, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/characters", strings.NewReader(`{"name":"Mira","persona":"warm"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		CharacterCreate(&stubCharacterService{}, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestCharacterGet(t *testing.T) {
	logg := testControllerLogger()
	ownerID := uuid.New()
	characterID := uuid.New()

	t.Run("not found surfaces 404", func(t *testing.T) {
		stub := &stubCharacterService{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "character not found")}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/characters/"+characterID.String(), nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("characterId", characterID.String())
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
		ctx = middleware.WithUserID(ctx, ownerID.String())
		rec := httptest.NewRecorder()
		CharacterGet(stub, logg).ServeHTTP(rec, req.WithContext(ctx))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubCharacterService{
			character: &models.Character{ID: characterID, Name: "Mira", Persona: "warm", MemoryLevel: 1},
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/characters/"+characterID.String(), nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("characterId", characterID.String())
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
		ctx = middleware.WithUserID(ctx, ownerID.String())
		rec := httptest.NewRecorder()
		CharacterGet(stub, logg).ServeHTTP(rec, req.WithContext(ctx))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestCharacterList(t *testing.T) {
	logg := testControllerLogger()
	ownerID := uuid.New()

	stub := &stubCharacterService{
		list: []models.Character{
			{ID: uuid.New(), Name: "Mira"},
			{ID: uuid.New(), Name: "Noa"},
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/characters", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), ownerID.String()))
	rec := httptest.NewRecorder()
	CharacterList(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Characters []characterView `json:"characters"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(envelope.Data.Characters) != 2 {
		t.Fatalf("expected 2 characters, got %d", len(envelope.Data.Characters))
	}
}

type stubCharacterService struct {
	createInput characters.CreateInput
	character   *models.Character
	list        []models.Character
	getErr      error
}

func (s *stubCharacterService) Create(ctx context.Context, input characters.CreateInput) (*models.Character, error) {
	s.createInput = input
	return s.character, nil
}

func (s *stubCharacterService) Get(ctx context.Context, ownerID, characterID uuid.UUID) (*models.Character, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.character, nil
}

func (s *stubCharacterService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Character, error) {
	return s.list, nil
}

func (s *stubCharacterService) Update(ctx context.Context, input characters.UpdateInput) (*models.Character, error) {
	return s.character, nil
}

func (s *stubCharacterService) Archive(ctx context.Context, ownerID, characterID uuid.UUID) error {
	return nil
}
