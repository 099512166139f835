package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// Service tracks and gates per-user consumption inside rolling windows.
type Service interface {
	Check(ctx context.Context, input CheckInput) (CheckResult, error)
	Increment(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, window enums.UsageWindow)
	CleanupExpired(ctx context.Context) (int64, error)
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// CheckInput describes one limit evaluation.
type CheckInput struct {
	UserID     uuid.UUID
	UsageType  enums.UsageType
	Limit      int64
	Bounded    bool
	Privileged bool
}

// CheckResult reports the gate decision and how much headroom is left.
// Remaining is -1 when the dimension is unlimited.
type CheckResult struct {
	Allowed   bool
	Remaining int64
	Current   int64
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires a usage service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("usage repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// Check evaluates the current counter against the limit. Privileged callers
// and unlimited dimensions always pass. A store failure is logged and the
// request is allowed through: a broken counter table must not take chat
// down with it.
func (s *service) Check(ctx context.Context, input CheckInput) (CheckResult, error) {
	if input.UserID == uuid.Nil {
		return CheckResult{}, fmt.Errorf("user id is required")
	}
	if !input.UsageType.IsValid() {
		return CheckResult{}, fmt.Errorf("invalid usage type %q", input.UsageType)
	}

	if input.Privileged || !input.Bounded {
		return CheckResult{Allowed: true, Remaining: -1}, nil
	}

	counter, err := s.repo.GetActive(ctx, input.UserID, input.UsageType, s.now())
	if err != nil {
		ctx = s.logg.WithUserID(ctx, input.UserID.String())
		s.logg.Error(ctx, "usage counter lookup failed, allowing request", err)
		return CheckResult{Allowed: true, Remaining: -1}, nil
	}

	var current int64
	if counter != nil {
		current = counter.Count
	}
	if current >= input.Limit {
		return CheckResult{Allowed: false, Remaining: 0, Current: current}, nil
	}
	return CheckResult{Allowed: true, Remaining: input.Limit - current, Current: current}, nil
}

// Increment bumps the counter for the window, opening a new window row when
// the previous one has elapsed. Failures are logged and swallowed; the user
// interaction has already happened by the time this runs.
func (s *service) Increment(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, window enums.UsageWindow) {
	if userID == uuid.Nil || !usageType.IsValid() {
		return
	}
	now := s.now()
	resetAt := nextReset(now, window)
	if err := s.repo.Increment(ctx, userID, usageType, now, resetAt); err != nil {
		ctx = s.logg.WithUserID(ctx, userID.String())
		s.logg.Error(ctx, "usage counter increment failed", err)
	}
}

// CleanupExpired removes counters whose window has fully elapsed.
func (s *service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// nextReset computes the window boundary: daily windows reset at the next
// UTC midnight, weekly windows seven days out.
func nextReset(now time.Time, window enums.UsageWindow) time.Time {
	now = now.UTC()
	switch window {
	case enums.UsageWindowWeekly:
		return now.Add(7 * 24 * time.Hour)
	default:
		next := now.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
	}
}
