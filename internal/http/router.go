// Package httpapi assembles the public HTTP surface: platform middleware,
// the per-module route groups under /api, health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifeflow/internal/platform/metrics"
	platformmw "lifeflow/internal/platform/middleware"
	"lifeflow/pkg/platform/httputil"
	authmw "lifeflow/pkg/platform/middleware/auth"
	"lifeflow/pkg/platform/middleware/metadata"
	"lifeflow/pkg/platform/middleware/requesttime"
	"lifeflow/pkg/requestcontext"
)

// Registrar mounts a module's token-protected routes.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes reachable without a token.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// Config carries everything the router wires together.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	CORSOrigin     string

	Tokens      authmw.TokenValidator
	Revocations authmw.TokenRevocationChecker
	// RateLimit wraps every /api route. Nil disables limiting.
	RateLimit func(http.Handler) http.Handler

	Public    []PublicRegistrar
	Protected []Registrar
	Health    map[string]HealthCheck
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewRouter builds the root handler.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(platformmw.RequestID)
	r.Use(platformmw.Recovery(logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(platformmw.Logger(logger, cfg.Metrics))
	r.Use(platformmw.CORS(cfg.CORSOrigin))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", healthHandler(cfg.Health, logger))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		r.Use(platformmw.Timeout(cfg.RequestTimeout))

		for _, p := range cfg.Public {
			p.RegisterPublic(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(cfg.Tokens, cfg.Revocations, logger))
			for _, p := range cfg.Protected {
				p.Register(r)
			}
		})
	})

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
		"error":             "not_found",
		"error_description": "Route not found",
	})
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:    "ok",
			Timestamp: requestcontext.Now(ctx),
			Checks:    make(map[string]string, len(checks)),
		}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", requestcontext.RequestID(ctx),
					"dependency", name,
					"error", err,
				)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
