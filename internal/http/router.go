// Package http wires every handler onto one chi router with the shared
// middleware chain and the auth gates.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "ballotbox/internal/admin/handler"
	electionhandler "ballotbox/internal/election/handler"
	identityhandler "ballotbox/internal/identity/handler"
	"ballotbox/internal/identity/models"
	"ballotbox/internal/platform/metrics"
	"ballotbox/internal/platform/middleware"
	"ballotbox/internal/ratelimit"
	votinghandler "ballotbox/internal/voting/handler"
)

// Limits carries the two throttles: a permissive global one and a stricter
// one for the sensitive endpoints.
type Limits struct {
	Global    ratelimit.Limit
	Sensitive ratelimit.Limit
}

// DefaultLimits mirror the original deployment: 100 requests per 15 minutes
// globally, 10 per 15 minutes on login and vote.
func DefaultLimits() Limits {
	return Limits{
		Global:    ratelimit.Limit{Name: "global", Limit: 100, Window: 15 * time.Minute},
		Sensitive: ratelimit.Limit{Name: "sensitive", Limit: 10, Window: 15 * time.Minute},
	}
}

// Deps bundles everything the router needs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.JWTValidator
	Buckets   ratelimit.BucketStore
	Limits    Limits

	Identity *identityhandler.Handler
	Election *electionhandler.Handler
	Voting   *votinghandler.Handler
	Admin    *adminhandler.Handler

	Healthz http.HandlerFunc
}

// NewRouter builds the full route table.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Origin)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(d.Metrics))
	r.Use(ratelimit.Middleware(d.Buckets, d.Limits.Global, d.Logger))

	if d.Healthz != nil {
		r.Get("/healthz", d.Healthz)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	sensitive := ratelimit.Middleware(d.Buckets, d.Limits.Sensitive, d.Logger)
	requireAuth := middleware.RequireAuth(d.Validator, d.Logger)
	requireAdmin := middleware.RequireRole(d.Logger, string(models.RoleAdmin), string(models.RoleSuperAdmin))
	requireSuperAdmin := middleware.RequireRole(d.Logger, string(models.RoleSuperAdmin))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		// Public reads.
		d.Election.RegisterPublic(r)
		d.Voting.RegisterPublic(r)

		// Registration and verification are open; logins also carry the
		// stricter limit.
		r.Group(func(r chi.Router) {
			r.Use(sensitive)
			d.Identity.Register(r)
		})

		// Authenticated voter routes.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(sensitive)
			d.Voting.RegisterAuthed(r)
		})

		// Admin routes.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)
			d.Election.RegisterAdmin(r)
			d.Admin.RegisterAdmin(r)
		})

		// Super-admin routes.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireSuperAdmin)
			d.Admin.RegisterSuperAdmin(r)
		})
	})

	return r
}
