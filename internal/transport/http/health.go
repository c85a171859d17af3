package http

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes a dependency, typically the persisted store.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// HandleHealth reports liveness, and readiness of the store when check is set.
func HandleHealth(check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, codeUnavailable, "store unavailable")
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
