package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/api/middleware"
	"github.com/lumora-ai/companion-backend/api/responses"
	"github.com/lumora-ai/companion-backend/api/validators"
	"github.com/lumora-ai/companion-backend/internal/characters"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	pkgerrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type characterCreateBody struct {
	Name        string `json:"name" validate:"required,min=1,max=80"`
	Persona     string `json:"persona" validate:"required,min=1,max=4000"`
	MemoryLevel int    `json:"memory_level" validate:"omitempty,min=1,max=3"`
}

type characterUpdateBody struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=80"`
	Persona     *string `json:"persona" validate:"omitempty,min=1,max=4000"`
	MemoryLevel *int    `json:"memory_level" validate:"omitempty,min=1,max=3"`
}

type characterView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Persona     string `json:"persona"`
	MemoryLevel int    `json:"memory_level"`
}

func toCharacterView(c *models.Character) characterView {
	return characterView{
		ID:          c.ID.String(),
		Name:        c.Name,
		Persona:     c.Persona,
		MemoryLevel: c.MemoryLevel,
	}
}

func CharacterCreate(svc characters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body characterCreateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		character, err := svc.Create(r.Context(), characters.CreateInput{
			OwnerID:     ownerID,
			Name:        validators.SanitizeString(body.Name, 80),
			Persona:     body.Persona,
			MemoryLevel: body.MemoryLevel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCharacterView(character))
	}
}

func CharacterList(svc characters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]characterView, 0, len(list))
		for i := range list {
			views = append(views, toCharacterView(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{"characters": views})
	}
}

func CharacterGet(svc characters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		character, err := svc.Get(r.Context(), ownerID, characterID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCharacterView(character))
	}
}

func CharacterUpdate(svc characters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body characterUpdateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		character, err := svc.Update(r.Context(), characters.UpdateInput{
			OwnerID:     ownerID,
			CharacterID: characterID,
			Name:        body.Name,
			Persona:     body.Persona,
			MemoryLevel: body.MemoryLevel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCharacterView(character))
	}
}

func CharacterArchive(svc characters.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Archive(r.Context(), ownerID, characterID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"archived": true})
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

func characterIdentifiers(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	ownerID, err := callerID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	characterID, err := uuid.Parse(chi.URLParam(r, "characterId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid character id")
	}
	return ownerID, characterID, nil
}
