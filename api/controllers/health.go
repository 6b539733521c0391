package controllers

import (
	"context"
	"net/http"

	"github.com/Kowshalya-Eswar/agrofarm/api/responses"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	pkgerrors "github.com/Kowshalya-Eswar/agrofarm/pkg/errors"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
)

// Pinger is any dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Agrofarm-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the authoritative store and the reservation store.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Agrofarm-Env", cfg.App.Env)

		status := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				status[name] = "not configured"
				healthy = false
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				if logg != nil {
					logg.Error(r.Context(), name+" health check failed", err)
				}
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": status})
	}
}
