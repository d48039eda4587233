// Package app wires the stores, services and HTTP surface of the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	activitykafka "lifeflow/internal/activity/kafka"
	activitysvc "lifeflow/internal/activity/service"
	authhandler "lifeflow/internal/auth/handler"
	authsvc "lifeflow/internal/auth/service"
	campaignhandler "lifeflow/internal/campaign/handler"
	campaignsvc "lifeflow/internal/campaign/service"
	dashboardhandler "lifeflow/internal/dashboard/handler"
	dashboardsvc "lifeflow/internal/dashboard/service"
	donorhandler "lifeflow/internal/donor/handler"
	donorsvc "lifeflow/internal/donor/service"
	httpapi "lifeflow/internal/http"
	inventoryhandler "lifeflow/internal/inventory/handler"
	inventorysvc "lifeflow/internal/inventory/service"
	jwttoken "lifeflow/internal/jwt_token"
	"lifeflow/internal/platform/config"
	"lifeflow/internal/platform/metrics"
	"lifeflow/internal/platform/redis"
	ratelimitmw "lifeflow/internal/ratelimit/middleware"
	"lifeflow/internal/ratelimit/store/bucket"
	requesthandler "lifeflow/internal/request/handler"
	requestsvc "lifeflow/internal/request/service"
	"lifeflow/pkg/requestcontext"
	"lifeflow/pkg/secrets"
)

const defaultSweepInterval = 15 * time.Minute

// App is a fully wired server minus the listener.
type App struct {
	Handler http.Handler

	logger        *slog.Logger
	stores        *stores
	redis         *redis.Client
	sink          *activitykafka.Sink
	recorder      *activitysvc.Recorder
	inventory     *inventorysvc.Service
	sweepInterval time.Duration
}

type Option func(*options)

type options struct {
	registry      *prometheus.Registry
	sweepInterval time.Duration
}

// WithRegistry exposes metrics from reg on /metrics. By default a fresh
// registry is used.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// New connects the configured backends and builds every service. The caller
// owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts ...Option) (_ *App, err error) {
	o := options{sweepInterval: defaultSweepInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	m := metrics.New(o.registry)

	a := &App{logger: log, sweepInterval: o.sweepInterval}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if a.redis != nil {
		log.InfoContext(ctx, "redis connected")
	}

	if a.stores, err = openStores(ctx, cfg, a.redis, log); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "stores ready", "backend", a.stores.backend)

	recorderOpts := []activitysvc.Option{activitysvc.WithLogger(log), activitysvc.WithMetrics(m)}
	if len(cfg.Activity.KafkaBrokers) > 0 {
		if a.sink, err = activitykafka.New(ctx, cfg.Activity.KafkaBrokers, cfg.Activity.KafkaTopic); err != nil {
			return nil, err
		}
		recorderOpts = append(recorderOpts, activitysvc.WithSink(a.sink, 0))
		log.InfoContext(ctx, "mirroring activity to kafka", "topic", cfg.Activity.KafkaTopic)
	}
	st := a.stores
	a.recorder = activitysvc.New(st.activity, recorderOpts...)

	campaigns := campaignsvc.New(st.campaigns, st.seq,
		campaignsvc.WithLogger(log),
		campaignsvc.WithMetrics(m),
	)
	a.inventory = inventorysvc.New(st.inventory,
		inventorysvc.WithLogger(log),
		inventorysvc.WithMetrics(m),
		inventorysvc.WithActivityRecorder(a.recorder),
	)
	donors := donorsvc.New(st.donors, st.users, st.runner, st.seq,
		donorsvc.WithLogger(log),
		donorsvc.WithMetrics(m),
		donorsvc.WithActivityRecorder(a.recorder),
		donorsvc.WithCampaignLedger(campaigns),
	)
	requests := requestsvc.New(st.requests, a.inventory, st.runner, st.seq,
		requestsvc.WithLogger(log),
		requestsvc.WithMetrics(m),
		requestsvc.WithActivityRecorder(a.recorder),
	)
	dashboard := dashboardsvc.New(st.donors, st.inventory, st.requests, st.campaigns,
		dashboardsvc.WithLogger(log),
		dashboardsvc.WithMetrics(m),
		dashboardsvc.WithActivityRecorder(a.recorder),
		dashboardsvc.WithDemoFallback(cfg.Dashboard.DemoFallback),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	auth := authsvc.New(st.users, st.trl, jwtService, secrets.NewHasher(cfg.Auth.BcryptCost), st.runner,
		authsvc.WithLogger(log),
		authsvc.WithMetrics(m),
		authsvc.WithActivityRecorder(a.recorder),
		authsvc.WithDonorEnroller(donors),
		authsvc.WithProfileCounters(st.donors, st.requests),
		authsvc.WithTokenTTL(cfg.Auth.TokenTTL),
	)

	if cfg.Auth.SeedDemoUsers {
		n, err := auth.SeedAccounts(requestcontext.WithTime(ctx, time.Now()), authsvc.DemoAccounts)
		if err != nil {
			return nil, fmt.Errorf("seed demo accounts: %w", err)
		}
		log.InfoContext(ctx, "demo accounts ready", "created", n)
	}

	health := map[string]httpapi.HealthCheck{"store": st.ping}
	if a.redis != nil {
		health["redis"] = a.redis.Health
	}

	authHandler := authhandler.New(auth, log)
	a.Handler = httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		Metrics:        m,
		Gatherer:       o.registry,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigin:     cfg.Server.CORSOrigin,
		Tokens:         jwttoken.NewJWTServiceAdapter(jwtService),
		Revocations:    auth,
		RateLimit:      newRateLimiter(cfg, a.redis, log, m).Handler,
		Public:         []httpapi.PublicRegistrar{authHandler},
		Protected: []httpapi.Registrar{
			authHandler,
			donorhandler.New(donors, log),
			inventoryhandler.New(a.inventory, log),
			requesthandler.New(requests, log),
			campaignhandler.New(campaigns, log),
			dashboardhandler.New(dashboard, log),
		},
		Health: health,
	})
	return a, nil
}

// newRateLimiter uses shared Redis windows when Redis is configured, with
// per-process windows as the fallback while Redis is failing.
func newRateLimiter(cfg config.Config, rdb *redis.Client, log *slog.Logger, m *metrics.Metrics) *ratelimitmw.Middleware {
	opts := []ratelimitmw.Option{
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(m),
	}
	if rdb == nil {
		return ratelimitmw.New(bucket.NewInMemoryBucketStore(), cfg.RateLimit.Requests, cfg.RateLimit.Window, log, opts...)
	}
	opts = append(opts, ratelimitmw.WithFallback(bucket.NewInMemoryBucketStore()))
	return ratelimitmw.New(bucket.NewRedis(rdb), cfg.RateLimit.Requests, cfg.RateLimit.Window, log, opts...)
}

// RunBackground drains the activity mirror and runs the periodic sweeps
// until ctx is cancelled.
func (a *App) RunBackground(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.recorder.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(a.sweepInterval)
		defer ticker.Stop()
		for {
			a.Sweep(gctx)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

type revocationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweep expires overdue blood units and, where the revocation store keeps
// rows, purges entries for tokens that have expired anyway.
func (a *App) Sweep(ctx context.Context) {
	if _, err := a.inventory.ExpireOverdue(requestcontext.WithTime(ctx, time.Now())); err != nil {
		a.logger.WarnContext(ctx, "expiry sweep failed", "error", err)
	}
	if p, ok := a.stores.trl.(revocationPurger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "revocation purge failed", "error", err)
			return
		}
		if n > 0 {
			a.logger.InfoContext(ctx, "purged expired revocations", "count", n)
		}
	}
}

// Close releases the backends in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.sink != nil {
		errs = append(errs, a.sink.Close(ctx))
	}
	if a.stores != nil {
		errs = append(errs, a.stores.close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
