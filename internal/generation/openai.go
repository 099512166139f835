package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumora-ai/companion-backend/pkg/enums"
)

// OpenAIProviderParams configures one chat-completion backend. BaseURL may
// point at any OpenAI-compatible endpoint.
type OpenAIProviderParams struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type openAIProvider struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a TextProvider backed by an OpenAI-compatible
// chat completion API.
func NewOpenAIProvider(params OpenAIProviderParams) (TextProvider, error) {
	if params.APIKey == "" {
		return nil, errors.New("api key required")
	}
	if params.Model == "" {
		return nil, errors.New("model required")
	}
	name := params.Name
	if name == "" {
		name = params.Model
	}

	cfg := newClientConfig(params)
	return &openAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
		model:  params.Model,
	}, nil
}

func newClientConfig(params OpenAIProviderParams) openai.ClientConfig {
	cfg := openai.DefaultConfig(params.APIKey)
	if params.BaseURL != "" {
		cfg.BaseURL = params.BaseURL
	}
	if params.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: params.Timeout}
	}
	return cfg
}

func (p *openAIProvider) Name() string { return p.name }

func (p *openAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleFor(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("chat completion via %s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("chat completion via %s: empty choices", p.name)
	}

	return CompletionResult{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int64(resp.Usage.TotalTokens),
	}, nil
}

func roleFor(role enums.MessageRole) string {
	switch role {
	case enums.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case enums.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
