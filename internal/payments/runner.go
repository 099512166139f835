package payments

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type processor interface {
	Process(ctx context.Context, data []byte) error
}

// Runner pumps the payments subscription into the consumer. Malformed
// messages are acked so they do not loop through redelivery; everything
// else nacks on failure and Pub/Sub retries.
type Runner struct {
	subscription *pubsub.Subscriber
	processor    processor
	logg         *logger.Logger
}

// NewRunner builds a payments subscription runner.
func NewRunner(subscription *pubsub.Subscriber, proc processor, logg *logger.Logger) (*Runner, error) {
	if subscription == nil {
		return nil, fmt.Errorf("payments subscription required")
	}
	if proc == nil {
		return nil, fmt.Errorf("processor required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Runner{subscription: subscription, processor: proc, logg: logg}, nil
}

// Run starts the receive loop until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	return r.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logCtx := r.logg.WithField(ctx, "message_id", msg.ID)
		if err := r.processor.Process(ctx, msg.Data); err != nil {
			if errors.Is(err, ErrMalformedEvent) {
				r.logg.Error(logCtx, "dropping malformed payment event", err)
				msg.Ack()
				return
			}
			r.logg.Error(logCtx, "payment event processing failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
