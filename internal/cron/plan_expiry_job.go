package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// PlanExpiryJobParams configure the premium plan downgrade sweep.
type PlanExpiryJobParams struct {
	Logger     *logger.Logger
	Repository planExpiryRepo
}

type planExpiryRepo interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// NewPlanExpiryJob builds a job that downgrades premium assignments whose
// paid period has lapsed. Resolution already treats lapsed rows as free, so
// the sweep only reconciles stored state; cached resolutions age out on
// their own TTL.
func NewPlanExpiryJob(params PlanExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	return &planExpiryJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type planExpiryJob struct {
	logg *logger.Logger
	repo planExpiryRepo
	now  func() time.Time
}

func (j *planExpiryJob) Name() string { return "plan-expiry" }

func (j *planExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	downgraded, err := j.repo.ExpireOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("plan expiry: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_downgraded", downgraded)
	j.logg.Info(logCtx, "plan expiry sweep complete")
	return nil
}
