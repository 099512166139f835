package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumora-ai/companion-backend/api/controllers"
	"github.com/lumora-ai/companion-backend/api/middleware"
	"github.com/lumora-ai/companion-backend/internal/budget"
	"github.com/lumora-ai/companion-backend/internal/characters"
	"github.com/lumora-ai/companion-backend/internal/conversation"
	"github.com/lumora-ai/companion-backend/internal/imagejobs"
	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/config"
	"github.com/lumora-ai/companion-backend/pkg/logger"
	"github.com/lumora-ai/companion-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. The worker binaries share
// the services but never the router, so wiring stays in one place.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DBPinger     controllers.Pinger
	Redis        *redis.Client
	Conversation conversation.Service
	ConvRepo     conversation.Repository
	Characters   characters.Service
	Plans        plans.Service
	Ledger       ledger.Service
	Budget       budget.Service
	ImageTracker *imagejobs.Tracker
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	chatPolicy := middleware.NewRateLimitPolicy(
		"chat",
		cfg.RateLimit.ChatWindow,
		cfg.RateLimit.ChatLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.Redis))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/chat/{characterId}", func(r chi.Router) {
			r.With(middleware.UserRateLimit(chatPolicy, deps.Redis, logg)).
				Post("/messages", controllers.ChatSend(deps.Conversation, logg))
			r.Get("/messages", controllers.ChatHistory(deps.Conversation, logg))
			r.Post("/clear", controllers.ChatClear(deps.Conversation, logg))
			r.Route("/image-job", func(r chi.Router) {
				r.Get("/", controllers.ImageJobStatus(deps.ConvRepo, deps.ImageTracker, logg))
				r.Delete("/", controllers.ImageJobCancel(deps.ConvRepo, deps.ImageTracker, logg))
			})
		})

		r.Route("/v1/characters", func(r chi.Router) {
			r.Post("/", controllers.CharacterCreate(deps.Characters, logg))
			r.Get("/", controllers.CharacterList(deps.Characters, logg))
			r.Get("/{characterId}", controllers.CharacterGet(deps.Characters, logg))
			r.Patch("/{characterId}", controllers.CharacterUpdate(deps.Characters, logg))
			r.Delete("/{characterId}", controllers.CharacterArchive(deps.Characters, logg))
		})

		r.Route("/v1/account", func(r chi.Router) {
			r.Get("/balance", controllers.AccountBalance(deps.Ledger, logg))
			r.Get("/transactions", controllers.AccountTransactions(deps.Ledger, logg))
			r.Get("/plan", controllers.AccountPlan(deps.Plans, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/budget", func(r chi.Router) {
			r.Get("/", controllers.AdminBudgetStatus(deps.Budget, logg))
			r.Get("/projection", controllers.AdminBudgetProjection(deps.Budget, logg))
		})
		r.Post("/v1/ledger/credit", controllers.AdminLedgerCredit(deps.Ledger, logg))
		r.Post("/v1/plans/assign", controllers.AdminPlanAssign(deps.Plans, logg))
	})

	return r
}
