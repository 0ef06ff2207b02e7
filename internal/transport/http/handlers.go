// @title Eventboard API
// @version 1.0.0
// @description Authorization introspection for the events application

// @host localhost:4000
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/testwelbi/eventboard/internal/audit"
	"github.com/testwelbi/eventboard/internal/auth"
	"github.com/testwelbi/eventboard/internal/observability/metrics"
	"github.com/testwelbi/eventboard/internal/permissions"
	"github.com/testwelbi/eventboard/internal/requestctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// ContextBuilder compiles the per-request authorization context
type ContextBuilder interface {
	Build(ctx context.Context, userID string) (*requestctx.Context, error)
}

// RoleLister lists every defined role
type RoleLister interface {
	List(ctx context.Context) ([]permissions.Role, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	verifier    TokenVerifier
	builder     ContextBuilder
	roles       RoleLister
	auditLogger audit.Logger
	metrics     *metrics.AuthzMetrics
	serviceName string
}

// NewHandler creates a new HTTP handler. m may be nil; a nil auditLogger
// writes to the default slog logger.
func NewHandler(
	verifier TokenVerifier,
	builder ContextBuilder,
	roles RoleLister,
	auditLogger audit.Logger,
	m *metrics.AuthzMetrics,
	serviceName string,
) *Handler {
	if auditLogger == nil {
		auditLogger = audit.NewSlogLogger(nil)
	}
	return &Handler{
		verifier:    verifier,
		builder:     builder,
		roles:       roles,
		auditLogger: auditLogger,
		metrics:     m,
		serviceName: serviceName,
	}
}

// RouterConfig tunes the middleware stack
type RouterConfig struct {
	RequestTimeout time.Duration
	Development    bool
	// AllowedOrigins enables CORS for browser clients when non-empty
	AllowedOrigins []string
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(SecurityHeaders(cfg.Development))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/me", h.GetCurrentUser)
		r.Get("/me/permissions", h.GetPermissions)
		r.Get("/me/can", h.CheckAbility)

		r.With(h.RequireAbility(permissions.ActionRead, permissions.SubjectRole)).Get("/roles", h.ListRoles)
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
