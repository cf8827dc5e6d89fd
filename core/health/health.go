// Package health exposes liveness and readiness probes. Liveness only
// confirms the process answers; readiness runs the dependency checks of the
// configured storage driver.
package health

import (
	"context"
	"log/slog"
	"net/http"
)

// Liveness always answers 200 ALIVE.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ALIVE"))
}

// Readiness answers 200 READY when every dependency check passes, 503
// otherwise. Failures are logged with the check's error.
func Readiness(logger *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.ErrorContext(r.Context(), "readiness check failed", slog.Any("error", err))
				http.Error(w, "NOT READY", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("READY"))
	}
}
