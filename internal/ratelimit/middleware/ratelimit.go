package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"lifeflow/internal/platform/metrics"
	"lifeflow/internal/ratelimit/models"
	"lifeflow/pkg/platform/circuit"
	"lifeflow/pkg/platform/httputil"
	"lifeflow/pkg/platform/middleware/metadata"
	"lifeflow/pkg/requestcontext"
)

const degradedStatusHeader = "X-RateLimit-Status"

// Bucket admits or rejects one request against a keyed window.
type Bucket interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Middleware limits requests per client IP. When the primary bucket store
// keeps failing, checks move to the fallback bucket until it recovers.
type Middleware struct {
	primary  Bucket
	fallback Bucket
	breaker  *circuit.Breaker
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the bucket used while the primary store is failing.
func WithFallback(b Bucket) Option {
	return func(m *Middleware) {
		m.fallback = b
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(primary Bucket, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		limit:   limit,
		window:  window,
		logger:  logger,
		breaker: circuit.New("ratelimit"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = metadata.ClientIPFromRequest(r)
		}

		result, degraded, err := m.check(ctx, models.ClientKey(ip))
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		if degraded {
			w.Header().Set(degradedStatusHeader, "degraded")
		}
		addRateLimitHeaders(w, result)

		if !result.Allowed {
			m.metrics.IncrementRateLimited()
			writeRateLimitExceeded(w, result)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check returns the result and whether it came from the fallback bucket.
func (m *Middleware) check(ctx context.Context, key string) (*models.Result, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit, m.window)
	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store failing, switching to fallback buckets",
				"breaker", m.breaker.Name(),
				"error", err,
			)
		}
		if m.fallback == nil || !useFallback {
			return nil, false, err
		}
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
	}
	if !usePrimary && m.fallback != nil {
		result, err = m.fallback.Allow(ctx, key, m.limit, m.window)
		return result, true, err
	}
	return result, false, nil
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:       "rate_limit_exceeded",
		Description: "Too many requests from this IP, please try again later.",
		RetryAfter:  result.RetryAfter,
	})
}
