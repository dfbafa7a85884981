package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/audit"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/auth"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/catalog"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/entry"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/matrix"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/observability"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport/middleware"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport/swagger"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/user"
)

type Handlers struct {
	Auth       *auth.Handler
	User       *user.Handler
	Catalog    *catalog.Handler
	Permission *permission.Handler
	Matrix     *matrix.Handler
	Audit      *audit.Handler
	Entry      *entry.Handler
}

type Options struct {
	AllowedOrigins  []string
	MetricsPath     string
	OpenAPIPath     string
	BatchRateLimit  int
	BatchRateWindow time.Duration
}

func RegisterAllRoutes(router *chi.Mux, healthHandler *HealthHandler, h Handlers, authz *middleware.Authorization, metrics *observability.Metrics, opts Options, logger *slog.Logger) {
	base := transport.NewBaseHandler(logger)
	all := scope.Ptr(scope.All)

	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.Middleware)
		router.Method(http.MethodGet, opts.MetricsPath, metrics.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	openAPIPath := opts.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/users/me", h.User.GetCurrentUser)
			pr.With(authz.Require("teams", "read", nil)).Get("/users", h.User.ListUsers)
			pr.Get("/catalog", h.Catalog.GetCatalog)
			pr.Get("/authz/check", h.Permission.Check)

			pr.Route("/entries", func(er chi.Router) {
				er.With(authz.Require("entries", "read", nil)).Get("/", h.Entry.ListEntries)
				er.With(authz.Require("entries", "create", nil)).Post("/", h.Entry.CreateEntry)
				er.With(authz.Require("entries", "read", nil)).Get("/{id}", h.Entry.GetEntry)
				er.With(authz.Require("entries", "approve", nil)).Post("/{id}/approve", h.Entry.ApproveEntry)
				er.With(authz.Require("entries", "reject", nil)).Post("/{id}/reject", h.Entry.RejectEntry)
				er.With(authz.Require("entries", "delete", all)).Delete("/{id}", h.Entry.DeleteEntry)
			})

			pr.Route("/admin", func(ar chi.Router) {
				ar.Group(func(rr chi.Router) {
					rr.Use(authz.Require("permissions", "read", all))
					rr.Get("/permissions/matrix", h.Matrix.GetMatrix)
					rr.Get("/roles/{roleID}/permissions", h.Matrix.GetRolePermissions)
				})

				ar.Group(func(wr chi.Router) {
					wr.Use(authz.Require("permissions", "update", all))
					wr.With(batchRateLimit(base, opts)).Put("/roles/{roleID}/permissions", h.Matrix.UpdateRolePermissions)
					wr.Post("/roles", h.Matrix.CreateRole)
					wr.Delete("/roles/{roleID}", h.Matrix.DeleteRole)
				})

				ar.Group(func(lr chi.Router) {
					lr.Use(authz.Require("audit_logs", "read", all))
					lr.Get("/audit-logs", h.Audit.ListAuditLogs)
					lr.Get("/audit-logs/export", h.Audit.ExportAuditLogs)
					lr.Get("/audit-logs/verify", h.Audit.VerifyAuditLogs)
				})
			})
		})
	})
}

// batchRateLimit limits matrix batches per caller. A non-positive limit
// disables it.
func batchRateLimit(base *transport.BaseHandler, opts Options) func(http.Handler) http.Handler {
	if opts.BatchRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := opts.BatchRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(opts.BatchRateLimit, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if id, ok := errors.IdentityFromContext(r.Context()); ok {
				return "user:" + strconv.FormatInt(id.UserID, 10), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			base.WriteAppError(w, errors.ErrRateLimited)
		}),
	)
}
