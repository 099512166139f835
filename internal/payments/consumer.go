package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// Delivery is at-least-once; processed event IDs are held this long so a
// redelivered message is recognized and dropped.
const dedupeTTL = 7 * 24 * time.Hour

// ErrMalformedEvent marks messages that can never succeed on retry. The
// runner acks these instead of letting them loop through redelivery.
var ErrMalformedEvent = errors.New("malformed payment event")

// Event is one plan purchase or renewal emitted by the billing system.
type Event struct {
	EventID     string     `json:"event_id"`
	UserID      uuid.UUID  `json:"user_id"`
	PlanType    string     `json:"plan_type"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	BonusTokens int64      `json:"bonus_tokens"`
}

// Deduper marks event IDs as seen. SetNX-style: false means already seen.
type Deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	PaymentEventKey(eventID string) string
}

// Consumer applies payment events: upsert the plan assignment, credit the
// period's bonus tokens, invalidate the cached plan.
type Consumer struct {
	plans   plans.Service
	ledger  ledger.Service
	deduper Deduper
	logg    *logger.Logger
}

// NewConsumer builds a payment event consumer.
func NewConsumer(planSvc plans.Service, ledgerSvc ledger.Service, deduper Deduper, logg *logger.Logger) (*Consumer, error) {
	if planSvc == nil {
		return nil, fmt.Errorf("plans service required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if deduper == nil {
		return nil, fmt.Errorf("deduper required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{plans: planSvc, ledger: ledgerSvc, deduper: deduper, logg: logg}, nil
}

// Process handles one raw message. A returned error nacks the message so
// Pub/Sub redelivers it; the dedupe key is released first so the retry is
// not mistaken for a duplicate.
func (c *Consumer) Process(ctx context.Context, data []byte) error {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: decode: %s", ErrMalformedEvent, err)
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id": event.EventID,
		"user_id":  event.UserID.String(),
	})

	if event.EventID == "" {
		return fmt.Errorf("%w: event id missing", ErrMalformedEvent)
	}
	if event.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id missing", ErrMalformedEvent)
	}
	planType, err := enums.ParsePlanType(event.PlanType)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedEvent, err)
	}

	key := c.deduper.PaymentEventKey(event.EventID)
	fresh, err := c.deduper.SetNX(ctx, key, "1", dedupeTTL)
	if err != nil {
		return fmt.Errorf("dedupe check: %w", err)
	}
	if !fresh {
		c.logg.Info(logCtx, "payment event already processed")
		return nil
	}

	if err := c.plans.Assign(ctx, plans.AssignInput{
		UserID:    event.UserID,
		PlanType:  planType,
		PeriodEnd: event.PeriodEnd,
	}); err != nil {
		c.logg.Error(logCtx, "plan assignment failed", err)
		_ = c.deduper.Del(ctx, key)
		return err
	}

	if event.BonusTokens > 0 {
		if err := c.ledger.Credit(ctx, ledger.CreditInput{
			UserID:      event.UserID,
			Amount:      event.BonusTokens,
			Kind:        enums.TransactionKindBonus,
			Description: "plan period token allotment",
		}); err != nil {
			c.logg.Error(logCtx, "bonus credit failed", err)
			_ = c.deduper.Del(ctx, key)
			return err
		}
	}

	c.logg.Info(logCtx, "payment event applied")
	return nil
}
