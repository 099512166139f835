package cron

import (
	"context"
	"fmt"

	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// UsageCleanupJobParams configure the usage counter sweep.
type UsageCleanupJobParams struct {
	Logger  *logger.Logger
	Cleaner usageCleaner
}

type usageCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// NewUsageCleanupJob builds a job that removes usage counters whose window
// has fully elapsed. Counters expire naturally at read time; the sweep keeps
// the table from growing without bound.
func NewUsageCleanupJob(params UsageCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cleaner == nil {
		return nil, fmt.Errorf("usage cleaner required")
	}
	return &usageCleanupJob{
		logg:    params.Logger,
		cleaner: params.Cleaner,
	}, nil
}

type usageCleanupJob struct {
	logg    *logger.Logger
	cleaner usageCleaner
}

func (j *usageCleanupJob) Name() string { return "usage-cleanup" }

func (j *usageCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.cleaner.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("usage cleanup: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	j.logg.Info(logCtx, "usage cleanup complete")
	return nil
}
