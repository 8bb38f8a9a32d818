package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/transport/http/handler"
	appmiddleware "github.com/transfer-notifier/internal/transport/http/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router such as rate-limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Correlation)
	r.Use(appmiddleware.RequestLogger(logger))
	r.Use(deps.Metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthH := handler.NewHealthHandler(deps.Ready)

	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		if deps.Verifier == nil {
			logger.Warn("no JWT public key configured, protected routes disabled")
			return
		}

		eventRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.EventRateLimit), cfg.EventRateBurst)

		eventH := handler.NewEventHandler(deps.Dispatcher)
		notifH := handler.NewNotificationHandler(deps.Notifications)
		jobH := handler.NewJobHandler(deps.Sweeper)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Verifier))

			// Upstream record writers
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleService))
				r.With(eventRL.Limit).Post("/events/notifications", eventH.NotificationCreated)
			})

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/notifications/{id}", notifH.Get)
				r.Post("/notifications/{id}/dispatch", notifH.Redispatch)
				r.Post("/jobs/retention-sweep", jobH.RetentionSweep)
			})
		})
	})

	return r
}
