package generation

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClientConfig_TimeoutBuildsDedicatedClient(t *testing.T) {
	cfg := newClientConfig(OpenAIProviderParams{
		APIKey:  "key",
		BaseURL: "https://llm.example.com/v1",
		Model:   "gpt-4o",
		Timeout: 45 * time.Second,
	})

	if cfg.BaseURL != "https://llm.example.com/v1" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
	client, ok := cfg.HTTPClient.(*http.Client)
	if !ok {
		t.Fatalf("expected *http.Client, got %T", cfg.HTTPClient)
	}
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %s", client.Timeout)
	}
}

func TestNewClientConfig_ZeroTimeoutKeepsDefaultClient(t *testing.T) {
	cfg := newClientConfig(OpenAIProviderParams{APIKey: "key", Model: "gpt-4o"})
	if cfg.HTTPClient == nil {
		t.Fatal("default http client must be preserved")
	}
}

func TestNewOpenAIProvider_Validation(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIProviderParams{Model: "gpt-4o"}); err == nil {
		t.Fatal("missing api key must fail")
	}
	if _, err := NewOpenAIProvider(OpenAIProviderParams{APIKey: "key"}); err == nil {
		t.Fatal("missing model must fail")
	}

	provider, err := NewOpenAIProvider(OpenAIProviderParams{APIKey: "key", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider error: %v", err)
	}
	if provider.Name() != "gpt-4o" {
		t.Fatalf("name must default to the model, got %q", provider.Name())
	}
}
