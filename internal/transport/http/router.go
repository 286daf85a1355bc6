package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Checker reports the health of one backend.
type Checker func(ctx context.Context) error

// RouterConfig lists the handlers served by NewRouter.
type RouterConfig struct {
	Logger      *slog.Logger
	WS          *WSHandler
	Leaderboard app.LeaderboardReader
	Checks      map[string]Checker
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth(logger, cfg.Checks))
	if cfg.WS != nil {
		r.Get("/ws", cfg.WS.ServeWS)
	}
	if cfg.Leaderboard != nil {
		r.Get("/leaderboard", handleLeaderboard(logger, cfg.Leaderboard))
	}
	return r
}

func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func handleHealth(logger *slog.Logger, checks map[string]Checker) http.HandlerFunc {
	type result struct {
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]result, len(checks))
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Error("health check failed", "name", name, "error", err)
				results[name] = result{Status: "error"}
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = result{Status: "ok"}
		}
		writeJSON(w, status, results)
	}
}

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

func handleLeaderboard(logger *slog.Logger, reader app.LeaderboardReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLeaderboardLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxLeaderboardLimit)
		}

		entries, err := reader.TopEntries(r.Context(), limit)
		if err != nil {
			logger.Error("read leaderboard failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "leaderboard unavailable")
			return
		}
		if entries == nil {
			entries = []domain.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
