// Package app assembles the HTTP router and the shared process plumbing used
// by the commands.
package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/rogerbap/gaminglibrary/internal/guard"
	"github.com/rogerbap/gaminglibrary/internal/handler"
	adminhandler "github.com/rogerbap/gaminglibrary/internal/handler/admin"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/metrics"
	"github.com/rogerbap/gaminglibrary/internal/policy"
	"github.com/rogerbap/gaminglibrary/internal/repository"
	"github.com/rogerbap/gaminglibrary/internal/service"
)

// Services bundles the application services over one store.
type Services struct {
	Players  *service.PlayerService
	Sessions *service.SessionService
}

// ServiceOptions tunes NewServices. Zero values disable the optional parts.
type ServiceOptions struct {
	Board             service.LeaderboardReader
	SessionStartRate  float64
	SessionStartBurst int
}

// NewServices builds the services with the default rating table.
func NewServices(store repository.Store, opts ServiceOptions, clk clock.Clock, logger *slog.Logger) Services {
	var limiter *guard.RateLimiter
	if opts.SessionStartRate > 0 {
		limiter = guard.NewRateLimiter(opts.SessionStartRate, max(1, opts.SessionStartBurst), clk)
	}
	return Services{
		Players:  service.NewPlayerService(store, opts.Board, clk, logger),
		Sessions: service.NewSessionService(store, policy.DefaultRatingTable(), limiter, clk, logger),
	}
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Store          repository.Store
	Services       Services
	JWTMgr         *auth.JWTManager
	Hub            *infra.WSHub  // nil disables the live feed
	CORSOrigins    string        // "*" or a comma-separated list
	IdempotencyTTL time.Duration // how long POST /players replays a keyed response
	Clock          clock.Clock
	Logger         *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	origins := deps.CORSOrigins
	if origins == "" {
		origins = "*"
	}

	// Handlers
	playerHandler := handler.NewPlayerHandler(deps.Services.Players, deps.Services.Sessions, deps.Hub, logger)
	sessionHandler := handler.NewSessionHandler(deps.Services.Sessions)
	moderation := adminhandler.NewModerationHandler(deps.Services.Players, deps.Services.Sessions, logger)
	idempotency := guard.NewIdempotencyGuard(ttl, deps.Clock)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(metrics.InstrumentHandler)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(origins))

	// Prometheus writes its own content type.
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.Store))
		r.Get("/leaderboard", playerHandler.Leaderboard)

		r.Route("/players", func(r chi.Router) {
			r.With(handler.Idempotent(idempotency)).Post("/", playerHandler.Create)
			r.Get("/{id}", playerHandler.Get)
			r.Put("/{id}", playerHandler.Update)
			r.Get("/{id}/sessions", playerHandler.ListSessions)
			r.Get("/{id}/live", playerHandler.Live)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/start", sessionHandler.Start)
			r.Get("/{id}", sessionHandler.Get)
			r.Post("/{id}/end", sessionHandler.End)
			r.Put("/{id}/data", sessionHandler.UpdateData)
		})

		// Admin-authenticated routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr))

			r.Route("/players", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.ModerationRoles()...))
				r.Post("/{id}/deactivate", moderation.DeactivatePlayer)
				r.Post("/{id}/reactivate", moderation.ReactivatePlayer)
			})

			r.With(auth.RequireRole(auth.ReviewRoles()...)).Get("/sessions/flagged", moderation.ListFlaggedSessions)
		})
	})

	return r
}
