package generation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog"

	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type stubProvider struct {
	name   string
	result CompletionResult
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	s.calls++
	return s.result, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func newTestChain(t *testing.T, primary, secondary []TextProvider) *Chain {
	t.Helper()
	chain, err := NewChain(ChainParams{Primary: primary, Secondary: secondary, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected chain error: %v", err)
	}
	return chain
}

func TestGenerate_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "primary", result: CompletionResult{Text: "hello", TokensUsed: 12}}
	second := &stubProvider{name: "backup"}
	chain := newTestChain(t, []TextProvider{first, second}, nil)

	result, err := chain.Generate(context.Background(), CompletionRequest{}, true)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if result.Text != "hello" || result.TokensUsed != 12 {
		t.Fatalf("unexpected result %+v", result)
	}
	if second.calls != 0 {
		t.Fatal("backup must not be called when primary succeeds")
	}
}

func TestGenerate_RetryableFallsThrough(t *testing.T) {
	first := &stubProvider{name: "primary", err: &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}}
	second := &stubProvider{name: "backup", result: CompletionResult{Text: "fallback"}}
	chain := newTestChain(t, []TextProvider{first, second}, nil)

	result, err := chain.Generate(context.Background(), CompletionRequest{}, true)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if result.Text != "fallback" {
		t.Fatalf("expected fallback result, got %+v", result)
	}
}

func TestGenerate_FatalStopsChain(t *testing.T) {
	first := &stubProvider{name: "primary", err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}}
	second := &stubProvider{name: "backup", result: CompletionResult{Text: "should not run"}}
	chain := newTestChain(t, []TextProvider{first, second}, nil)

	_, err := chain.Generate(context.Background(), CompletionRequest{}, true)
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	if second.calls != 0 {
		t.Fatal("fatal error must stop the chain")
	}
}

func TestGenerate_AllFailReturnsProviderError(t *testing.T) {
	first := &stubProvider{name: "primary", err: errors.New("timeout")}
	second := &stubProvider{name: "backup", err: errors.New("reset")}
	chain := newTestChain(t, []TextProvider{first, second}, nil)

	_, err := chain.Generate(context.Background(), CompletionRequest{}, true)
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("both providers should be tried once, got %d/%d", first.calls, second.calls)
	}
}

func TestGenerate_TierSelectsOrder(t *testing.T) {
	premiumProvider := &stubProvider{name: "premium", result: CompletionResult{Text: "a"}}
	freeProvider := &stubProvider{name: "free", result: CompletionResult{Text: "b"}}
	chain := newTestChain(t, []TextProvider{premiumProvider}, []TextProvider{freeProvider})

	if _, err := chain.Generate(context.Background(), CompletionRequest{}, true); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if _, err := chain.Generate(context.Background(), CompletionRequest{}, false); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if premiumProvider.calls != 1 || freeProvider.calls != 1 {
		t.Fatalf("tier routing broken: premium=%d free=%d", premiumProvider.calls, freeProvider.calls)
	}
}

func TestGenerate_FreeTierFallsBackToPrimary(t *testing.T) {
	primary := &stubProvider{name: "primary", result: CompletionResult{Text: "rescued"}}
	secondary := &stubProvider{name: "secondary", err: &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}}
	chain := newTestChain(t, []TextProvider{primary, secondary}, []TextProvider{secondary, primary})

	result, err := chain.Generate(context.Background(), CompletionRequest{}, false)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if result.Text != "rescued" {
		t.Fatalf("free traffic must reach the primary when the secondary is down, got %+v", result)
	}
	if secondary.calls != 1 || primary.calls != 1 {
		t.Fatalf("unexpected call counts: secondary=%d primary=%d", secondary.calls, primary.calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unauthorized", err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, want: false},
		{name: "bad request", err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, want: false},
		{name: "rate limited", err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, want: true},
		{name: "server error", err: &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, want: true},
		{name: "transport", err: errors.New("connection reset"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
