package controllers

import (
	"context"
	"net/http"

	"github.com/lumora-ai/companion-backend/api/responses"
	"github.com/lumora-ai/companion-backend/pkg/config"
	pkgerrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// Pinger is the health check surface shared by the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lumora-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the backing stores the API cannot serve without.
// Redis degradation is reported but not fatal: caches and limiters fail open.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lumora-Env", cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}

		payload := map[string]string{"status": "ready"}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				if logg != nil {
					logg.Error(r.Context(), "redis unavailable", err)
				}
				payload["cache"] = "degraded"
			}
		}
		responses.WriteSuccess(w, payload)
	}
}
