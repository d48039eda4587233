// Command migrate applies or rolls back the embedded PostgreSQL schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"lifeflow/internal/platform/config"
	"lifeflow/internal/platform/logger"
	"lifeflow/internal/platform/postgres"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Int("version", -1, "Migration version (for force)")
	)
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)
	if cfg.Store.PostgresDSN == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	db, err := postgres.Open(ctx, postgres.Options{DSN: cfg.Store.PostgresDSN, MaxOpenConns: 1})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	m, err := postgres.NewMigrator(db)
	if err != nil {
		_ = db.Close()
		log.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := execute(m, *command, *steps, *version); err != nil {
		log.Error("migration failed", "command", *command, "error", err)
		os.Exit(1)
	}
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("migration finished", "command", *command, "version", "none")
	case err != nil:
		log.Error("failed to read migration version", "error", err)
		os.Exit(1)
	default:
		log.Info("migration finished", "command", *command, "version", v, "dirty", dirty)
	}
}

func execute(m *migrate.Migrate, command string, steps, version int) error {
	var err error
	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps <= 0 {
			steps = 1
		}
		err = m.Steps(-steps)
	case "version":
		return nil
	case "force":
		if version < 0 {
			return errors.New("force requires -version")
		}
		return m.Force(version)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
