package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

// CountStore lists per-server message counters.
type CountStore interface {
	MessageCounts(ctx context.Context) ([]storage.MessageCount, error)
}

// NewRouter builds the HTTP surface. The webhook route is not wrapped in
// the timeout middleware; it writes its own single response.
func NewRouter(webhook http.Handler, counts CountStore, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)

	r.Post("/github-webhook", webhook.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status": "ok",
				"uptime": time.Since(started).Round(time.Second).String(),
			})
		})

		r.Get("/api/message-counts", func(w http.ResponseWriter, r *http.Request) {
			list, err := counts.MessageCounts(r.Context())
			if err != nil {
				logger.Error().Err(err).Msg("Failed to load message counts")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load message counts"})
				return
			}
			if list == nil {
				list = []storage.MessageCount{}
			}
			writeJSON(w, http.StatusOK, list)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}
