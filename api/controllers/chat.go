package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/api/middleware"
	"github.com/lumora-ai/companion-backend/api/responses"
	"github.com/lumora-ai/companion-backend/api/validators"
	"github.com/lumora-ai/companion-backend/internal/conversation"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type chatSendBody struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
}

type chatMessageView struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	IsImage   bool     `json:"is_image"`
	ImageURLs []string `json:"image_urls,omitempty"`
	CreatedAt string   `json:"created_at"`
}

type chatSendView struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	IsImage   bool   `json:"is_image"`
	JobID     string `json:"job_id,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

// ChatSend runs the conversation pipeline for one inbound message.
func ChatSend(svc conversation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body chatSendBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Send(r.Context(), conversation.SendInput{
			UserID:      userID,
			CharacterID: characterID,
			Text:        body.Text,
			Privileged:  middleware.BypassLimitsFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := chatSendView{
			SessionID: result.SessionID.String(),
			Text:      result.Text,
			IsImage:   result.IsImage,
			Fallback:  result.Fallback,
		}
		if result.JobID != uuid.Nil {
			view.JobID = result.JobID.String()
		}
		responses.WriteSuccess(w, view)
	}
}

// ChatHistory lists the active session's messages oldest first.
func ChatHistory(svc conversation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		messages, err := svc.History(r.Context(), userID, characterID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]chatMessageView, 0, len(messages))
		for _, m := range messages {
			views = append(views, chatMessageView{
				ID:        m.ID.String(),
				Role:      string(m.Role),
				Content:   m.Content,
				IsImage:   m.IsImage,
				ImageURLs: m.ImageURLs,
				CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, map[string]any{"messages": views})
	}
}

// ChatClear archives the active session; history stays on record but the
// next message starts fresh.
func ChatClear(svc conversation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, characterID, err := characterIdentifiers(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ClearHistory(r.Context(), userID, characterID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cleared": true})
	}
}
