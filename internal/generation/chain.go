package generation

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
	"github.com/lumora-ai/companion-backend/pkg/metrics"
)

// Chain tries providers in order until one succeeds. Premium requests walk
// the primary-first order; free requests start at the cheaper secondary.
type Chain struct {
	primary   []TextProvider
	secondary []TextProvider
	logg      *logger.Logger
	metr      *metrics.GenerationMetrics
}

// ChainParams groups dependencies for the provider chain.
type ChainParams struct {
	Primary   []TextProvider
	Secondary []TextProvider
	Logger    *logger.Logger
	Metrics   *metrics.GenerationMetrics
}

// NewChain wires a provider chain. Secondary defaults to the primary order
// when not supplied.
func NewChain(params ChainParams) (*Chain, error) {
	if len(params.Primary) == 0 {
		return nil, errors.New("at least one provider required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	secondary := params.Secondary
	if len(secondary) == 0 {
		secondary = params.Primary
	}
	return &Chain{
		primary:   params.Primary,
		secondary: secondary,
		logg:      params.Logger,
		metr:      params.Metrics,
	}, nil
}

// Generate walks the tier's provider order. Retryable failures fall through
// to the next provider; fatal ones stop the walk immediately. When every
// provider fails the last error is returned wrapped as a provider error.
func (c *Chain) Generate(ctx context.Context, req CompletionRequest, premium bool) (CompletionResult, error) {
	providers := c.secondary
	if premium {
		providers = c.primary
	}

	var lastErr error
	for i, provider := range providers {
		start := time.Now()
		result, err := provider.Complete(ctx, req)
		if err == nil {
			c.metr.ObserveCall(provider.Name(), time.Since(start), "success")
			return result, nil
		}
		c.metr.ObserveCall(provider.Name(), time.Since(start), "failure")
		lastErr = err

		fields := map[string]any{"provider": provider.Name()}
		c.logg.Error(c.logg.WithFields(ctx, fields), "provider completion failed", err)

		if !IsRetryable(err) {
			break
		}
		if i+1 < len(providers) {
			c.metr.IncFallback(provider.Name(), providers[i+1].Name())
		}
	}

	return CompletionResult{}, apperrors.Wrap(apperrors.CodeProvider, lastErr, "all providers failed")
}
