package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumora-ai/companion-backend/api/routes"
	"github.com/lumora-ai/companion-backend/internal/budget"
	"github.com/lumora-ai/companion-backend/internal/characters"
	"github.com/lumora-ai/companion-backend/internal/conversation"
	"github.com/lumora-ai/companion-backend/internal/generation"
	"github.com/lumora-ai/companion-backend/internal/imagejobs"
	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/internal/usage"
	"github.com/lumora-ai/companion-backend/pkg/config"
	"github.com/lumora-ai/companion-backend/pkg/db"
	"github.com/lumora-ai/companion-backend/pkg/logger"
	"github.com/lumora-ai/companion-backend/pkg/metrics"
	"github.com/lumora-ai/companion-backend/pkg/migrate"
	"github.com/lumora-ai/companion-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	genMetrics := metrics.NewGenerationMetrics(prometheus.DefaultRegisterer)

	plansSvc, err := plans.NewService(plans.ServiceParams{
		Repo:     plans.NewRepository(dbClient.DB()),
		Cache:    redisClient,
		CacheTTL: cfg.Plans.CacheTTL,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	charactersSvc, err := characters.NewService(characters.ServiceParams{
		Repo:  characters.NewRepository(dbClient.DB()),
		Plans: plansSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create characters service", err)
		os.Exit(1)
	}

	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:   usage.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	budgetSvc, err := budget.NewService(budget.ServiceParams{
		Repo:    budget.NewRepository(dbClient.DB()),
		Config:  cfg.Budget,
		Logger:  logg,
		Metrics: genMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create budget service", err)
		os.Exit(1)
	}

	chain, err := buildGenerationChain(cfg, logg, genMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build generation chain", err)
		os.Exit(1)
	}

	imageClients, err := buildImageClients(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create image clients", err)
		os.Exit(1)
	}

	convRepo := conversation.NewRepository(dbClient.DB())
	tracker, err := imagejobs.NewTracker(imagejobs.TrackerParams{
		Clients:      imageClients,
		Sink:         conversation.NewMessageSink(convRepo, logg),
		PollInterval: cfg.ImageProvider.PollInterval,
		MaxAttempts:  cfg.ImageProvider.MaxAttempts,
		Logger:       logg,
		Metrics:      genMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create image job tracker", err)
		os.Exit(1)
	}

	conversationSvc, err := conversation.NewService(conversation.ServiceParams{
		Repo:       convRepo,
		Characters: charactersSvc,
		Plans:      plansSvc,
		Usage:      usageSvc,
		Ledger:     ledgerSvc,
		Budget:     budgetSvc,
		Generator:  chain,
		ImageJobs:  tracker,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create conversation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DBPinger:     dbClient,
			Redis:        redisClient,
			Conversation: conversationSvc,
			ConvRepo:     convRepo,
			Characters:   charactersSvc,
			Plans:        plansSvc,
			Ledger:       ledgerSvc,
			Budget:       budgetSvc,
			ImageTracker: tracker,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildImageClients wires the ordered image provider preference: the
// primary model first, then the lower-fidelity fallback. The fallback
// reuses the primary's endpoint and key unless overridden.
func buildImageClients(cfg *config.Config) ([]generation.ImageClient, error) {
	primary, err := generation.NewImageClient(cfg.ImageProvider)
	if err != nil {
		return nil, err
	}
	clients := []generation.ImageClient{primary}

	if cfg.ImageProvider.FallbackModel != "" && cfg.ImageProvider.FallbackModel != cfg.ImageProvider.Model {
		fallbackCfg := cfg.ImageProvider
		fallbackCfg.Model = cfg.ImageProvider.FallbackModel
		if cfg.ImageProvider.FallbackBaseURL != "" {
			fallbackCfg.BaseURL = cfg.ImageProvider.FallbackBaseURL
		}
		if cfg.ImageProvider.FallbackAPIKey != "" {
			fallbackCfg.APIKey = cfg.ImageProvider.FallbackAPIKey
		}
		fallback, err := generation.NewImageClient(fallbackCfg)
		if err != nil {
			return nil, err
		}
		clients = append(clients, fallback)
	}
	return clients, nil
}

// buildGenerationChain wires the premium and free provider orders from
// config. Premium traffic prefers the primary model and falls back to the
// secondary; free traffic starts at the cheaper secondary and still falls
// back to the primary when the secondary is down.
func buildGenerationChain(cfg *config.Config, logg *logger.Logger, metr *metrics.GenerationMetrics) (*generation.Chain, error) {
	primary, err := generation.NewOpenAIProvider(generation.OpenAIProviderParams{
		Name:    "primary",
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.PrimaryModel,
		Timeout: cfg.OpenAI.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	secondaryKey := cfg.OpenAI.SecondaryAPIKey
	if secondaryKey == "" {
		secondaryKey = cfg.OpenAI.APIKey
	}
	secondaryURL := cfg.OpenAI.SecondaryBaseURL
	if secondaryURL == "" {
		secondaryURL = cfg.OpenAI.BaseURL
	}
	secondary, err := generation.NewOpenAIProvider(generation.OpenAIProviderParams{
		Name:    "secondary",
		APIKey:  secondaryKey,
		BaseURL: secondaryURL,
		Model:   cfg.OpenAI.SecondaryModel,
		Timeout: cfg.OpenAI.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	return generation.NewChain(generation.ChainParams{
		Primary:   []generation.TextProvider{primary, secondary},
		Secondary: []generation.TextProvider{secondary, primary},
		Logger:    logg,
		Metrics:   metr,
	})
}
