package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/api/responses"
	"github.com/lumora-ai/companion-backend/internal/conversation"
	"github.com/lumora-ai/companion-backend/internal/imagejobs"
	pkgerrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// jobTracker is the tracker surface the image endpoints need.
type jobTracker interface {
	Status(sessionID uuid.UUID) (imagejobs.Status, bool)
	Cancel(sessionID uuid.UUID) bool
}

// ImageJobStatus reports the in-flight image job for the caller's active
// session, if any.
func ImageJobStatus(repo conversation.Repository, tracker jobTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := repo.GetActiveSession(r.Context(), userID, characterID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up session failed"))
			return
		}
		if session == nil {
			responses.WriteSuccess(w, map[string]any{"active": false})
			return
		}

		status, ok := tracker.Status(session.ID)
		if !ok {
			responses.WriteSuccess(w, map[string]any{"active": false})
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"active":   true,
			"job_id":   status.JobID.String(),
			"state":    string(status.State),
			"attempts": status.Attempts,
		})
	}
}

// ImageJobCancel abandons the in-flight job; no result message will land.
func ImageJobCancel(repo conversation.Repository, tracker jobTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := repo.GetActiveSession(r.Context(), userID, characterID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up session failed"))
			return
		}
		if session == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no active session"))
			return
		}

		responses.WriteSuccess(w, map[string]bool{"canceled": tracker.Cancel(session.ID)})
	}
}
