package generation

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// Message is one turn handed to a text provider.
type Message struct {
	Role    enums.MessageRole
	Content string
}

// CompletionRequest is a provider-agnostic text generation request.
type CompletionRequest struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// CompletionResult carries the provider reply and its token accounting.
type CompletionResult struct {
	Text       string
	TokensUsed int64
}

// TextProvider generates one completion. Implementations classify their
// own failures via IsRetryable.
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// IsRetryable reports whether a provider failure is worth handing to the
// next provider in the chain. Auth and request-shape failures are final:
// every provider would refuse the same request.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
			return false
		case http.StatusTooManyRequests:
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}

	// transport-level failures (timeouts, resets) are retryable
	return true
}
