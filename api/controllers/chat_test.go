package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/api/middleware"
	"github.com/lumora-ai/companion-backend/internal/conversation"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func chatRequest(t *testing.T, method, body string, userID, characterID uuid.UUID) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1/chat/"+characterID.String()+"/messages", reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("characterId", characterID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = middleware.WithUserID(ctx, userID.String())
	return req.WithContext(ctx)
}

func TestChatSend(t *testing.T) {
	logg := testControllerLogger()
	userID := uuid.New()
	characterID := uuid.New()
	sessionID := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubConversationService{
			sendResult: &conversation.SendResult{
				SessionID: sessionID,
				Text:      "hey there",
			},
		}
		req := chatRequest(t, http.MethodPost, `{"text":"hello"}`, userID, characterID)
		rec := httptest.NewRecorder()
		ChatSend(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.sendInput.UserID != userID || stub.sendInput.CharacterID != characterID {
			t.Fatalf("unexpected send input %+v", stub.sendInput)
		}
		var envelope struct {
			Data chatSendView `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if envelope.Data.Text != "hey there" {
			t.Fatalf("unexpected envelope %+v", envelope)
		}
		if envelope.Data.SessionID != sessionID.String() {
			t.Fatalf("expected session %s, got %s", sessionID, envelope.Data.SessionID)
		}
	})

	t.Run("privileged flag carried from context", func(t *testing.T) {
		stub := &stubConversationService{sendResult: &conversation.SendResult{SessionID: sessionID}}
		req := chatRequest(t, http.MethodPost, `{"text":"hello"}`, userID, characterID)
		req = req.WithContext(middleware.WithBypassLimits(req.Context(), true))
		rec := httptest.NewRecorder()
		ChatSend(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !stub.sendInput.Privileged {
			t.Fatalf("expected privileged send input")
		}
	})

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/"+characterID.String()+"/messages", strings.NewReader(`{"text":"hi"}`))
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("characterId", characterID.String())
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		ChatSend(&stubConversationService{}, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without user, got %d", rec.Code)
		}
	})

	t.Run("invalid character id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/not-a-uuid/messages", strings.NewReader(`{"text":"hi"}`))
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("characterId", "not-a-uuid")
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
		ctx = middleware.WithUserID(ctx, userID.String())
		rec := httptest.NewRecorder()
		ChatSend(&stubConversationService{}, logg).ServeHTTP(rec, req.WithContext(ctx))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for bad id, got %d", rec.Code)
		}
	})

	t.Run("empty text rejected", func(t *testing.T) {
		req := chatRequest(t, http.MethodPost, `{"text":""}`, userID, characterID)
		rec := httptest.NewRecorder()
		ChatSend(&stubConversationService{}, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty text, got %d", rec.Code)
		}
	})
}

func TestChatHistory(t *testing.T) {
	logg := testControllerLogger()
	userID := uuid.New()
	characterID := uuid.New()

	stub := &stubConversationService{
		history: []models.ChatMessage{
			{ID: uuid.New(), Role: enums.MessageRoleUser, Content: "hi", CreatedAt: time.Now()},
			{ID: uuid.New(), Role: enums.MessageRoleAssistant, Content: "hello", CreatedAt: time.Now()},
		},
	}
	req := chatRequest(t, http.MethodGet, "", userID, characterID)
	rec := httptest.NewRecorder()
	ChatHistory(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.historyLimit != 50 {
		t.Fatalf("expected default limit 50, got %d", stub.historyLimit)
	}
	var envelope struct {
		Data struct {
			Messages []chatMessageView `json:"messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(envelope.Data.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(envelope.Data.Messages))
	}
	if envelope.Data.Messages[0].Content != "hi" {
		t.Fatalf("unexpected first message %+v", envelope.Data.Messages[0])
	}
}

func TestChatClear(t *testing.T) {
	logg := testControllerLogger()
	userID := uuid.New()
	characterID := uuid.New()

	stub := &stubConversationService{}
	req := chatRequest(t, http.MethodPost, "", userID, characterID)
	rec := httptest.NewRecorder()
	ChatClear(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !stub.cleared {
		t.Fatalf("expected ClearHistory to be invoked")
	}
}

type stubConversationService struct {
	sendInput    conversation.SendInput
	sendResult   *conversation.SendResult
	sendErr      error
	history      []models.ChatMessage
	historyLimit int
	cleared      bool
}

func (s *stubConversationService) Send(ctx context.Context, input conversation.SendInput) (*conversation.SendResult, error) {
	s.sendInput = input
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return s.sendResult, nil
}

func (s *stubConversationService) ClearHistory(ctx context.Context, userID, characterID uuid.UUID) error {
	s.cleared = true
	return nil
}

func (s *stubConversationService) History(ctx context.Context, userID, characterID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	s.historyLimit = limit
	return s.history, nil
}
