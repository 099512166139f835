package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/payments"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/config"
	"github.com/lumora-ai/companion-backend/pkg/db"
	"github.com/lumora-ai/companion-backend/pkg/logger"
	"github.com/lumora-ai/companion-backend/pkg/migrate"
	"github.com/lumora-ai/companion-backend/pkg/pubsub"
	"github.com/lumora-ai/companion-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "payments-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "payments-worker"

	logg = logger.New(logger.Options{
		ServiceName: "payments-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.PaymentsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "payments subscription", errors.New("subscription not configured"))
	}

	plansSvc, err := plans.NewService(plans.ServiceParams{
		Repo:     plans.NewRepository(dbClient.DB()),
		Cache:    redisClient,
		CacheTTL: cfg.Plans.CacheTTL,
		Logger:   logg,
	})
	requireResource(ctx, logg, "plans service", err)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	requireResource(ctx, logg, "ledger service", err)

	consumer, err := payments.NewConsumer(plansSvc, ledgerSvc, redisClient, logg)
	requireResource(ctx, logg, "payments consumer", err)

	runner, err := payments.NewRunner(subscription, consumer, logg)
	requireResource(ctx, logg, "payments runner", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "payments worker ready")

	if err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "payments worker failed", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "payments worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
