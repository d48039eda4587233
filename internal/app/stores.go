package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	activitysvc "lifeflow/internal/activity/service"
	activitystore "lifeflow/internal/activity/store"
	authsvc "lifeflow/internal/auth/service"
	"lifeflow/internal/auth/store/revocation"
	"lifeflow/internal/auth/store/user"
	campaignsvc "lifeflow/internal/campaign/service"
	campaignstore "lifeflow/internal/campaign/store"
	dashboardsvc "lifeflow/internal/dashboard/service"
	donorsvc "lifeflow/internal/donor/service"
	donorstore "lifeflow/internal/donor/store"
	inventorysvc "lifeflow/internal/inventory/service"
	inventorystore "lifeflow/internal/inventory/store"
	"lifeflow/internal/platform/config"
	"lifeflow/internal/platform/postgres"
	"lifeflow/internal/platform/redis"
	"lifeflow/internal/platform/sequence"
	requestsvc "lifeflow/internal/request/service"
	requeststore "lifeflow/internal/request/store"
	"lifeflow/pkg/platform/tx"
)

type donorRepo interface {
	donorsvc.Store
	dashboardsvc.DonorSource
	authsvc.OwnershipCounter
}

type inventoryRepo interface {
	inventorysvc.Store
	dashboardsvc.InventorySource
}

type requestRepo interface {
	requestsvc.Store
	dashboardsvc.RequestSource
	authsvc.OwnershipCounter
}

type campaignRepo interface {
	campaignsvc.Store
	dashboardsvc.CampaignSource
}

// stores groups the repositories chosen at startup. All of them share one
// backend; there is no runtime fallback between backends.
type stores struct {
	backend   string
	db        *sql.DB
	users     authsvc.UserStore
	donors    donorRepo
	inventory inventoryRepo
	requests  requestRepo
	campaigns campaignRepo
	activity  activitysvc.Store
	trl       authsvc.TokenRevocationList
	runner    tx.Runner
	seq       sequence.Generator
}

func (s *stores) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *stores) close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStores builds the repositories for cfg.Store.Backend. Redis, when
// configured, backs token revocation and display-id sequences for the
// memory backend so several replicas can share them.
func openStores(ctx context.Context, cfg config.Config, rdb *redis.Client, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, postgres.Options{
			DSN:          cfg.Store.PostgresDSN,
			MaxOpenConns: cfg.Store.MaxOpenConns,
			MaxIdleConns: cfg.Store.MaxOpenConns / 2,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Store.MigrateOnStart {
			if err := postgres.Migrate(db); err != nil {
				_ = db.Close()
				return nil, err
			}
			logger.InfoContext(ctx, "database migrations applied")
		}
		s := &stores{
			backend:   config.BackendPostgres,
			db:        db,
			users:     user.NewPostgres(db),
			donors:    donorstore.NewPostgres(db),
			inventory: inventorystore.NewPostgres(db),
			requests:  requeststore.NewPostgres(db),
			campaigns: campaignstore.NewPostgres(db),
			activity:  activitystore.NewPostgres(db),
			trl:       revocation.NewPostgresTRL(db),
			runner:    tx.NewSQLRunner(db),
			seq:       sequence.NewPostgres(db),
		}
		if rdb != nil {
			s.trl = revocation.NewRedisTRL(rdb)
		}
		return s, nil

	case config.BackendMemory:
		s := &stores{
			backend:   config.BackendMemory,
			users:     user.New(),
			donors:    donorstore.NewInMemoryStore(),
			inventory: inventorystore.NewInMemoryStore(),
			requests:  requeststore.NewInMemoryStore(),
			campaigns: campaignstore.NewInMemoryStore(),
			activity:  activitystore.NewInMemoryStore(),
			trl:       revocation.NewInMemoryTRL(),
			runner:    tx.NewLockRunner(),
			seq:       sequence.NewMemory(),
		}
		if rdb != nil {
			s.trl = revocation.NewRedisTRL(rdb)
			s.seq = sequence.NewRedis(rdb)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
