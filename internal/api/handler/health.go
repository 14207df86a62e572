package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/partscout/internal/api/response"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health checks store and cache connectivity. A nil cache is reported as disabled.
func Health(store, cache Pinger, provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"store": "ok",
			"cache": "ok",
		}

		if err := store.Ping(r.Context()); err != nil {
			checks["store"] = "degraded"
		}
		if cache == nil {
			checks["cache"] = "disabled"
		} else if err := cache.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["store"] == "degraded" || checks["cache"] == "degraded" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":      "ok",
			"services":    checks,
			"ai_provider": provider,
		})
	}
}
