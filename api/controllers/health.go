package controllers

import (
	"net/http"
	"time"

	"github.com/hpratama/resellhub-backend/api/responses"
	"github.com/hpratama/resellhub-backend/pkg/config"
	"github.com/hpratama/resellhub-backend/pkg/db"
	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
	"github.com/hpratama/resellhub-backend/pkg/logger"
	"github.com/hpratama/resellhub-backend/pkg/redis"
)

const healthCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ResellHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ResellHub-Env", cfg.App.Env)

		ctx, cancel := contextWithTimeout(r, healthCheckTimeout)
		defer cancel()

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
