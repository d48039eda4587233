package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SEED_DEMO_USERS", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Auth.SeedDemoUsers)
	assert.False(t, cfg.Dashboard.DemoFallback)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://lifeflow@localhost/lifeflow")
	t.Setenv("ACTIVITY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")

	cfg := FromEnv()
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.False(t, cfg.Auth.SeedDemoUsers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Activity.KafkaBrokers)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("postgres without dsn", func(t *testing.T) {
		cfg := Config{Store: Store{Backend: BackendPostgres}, Auth: Auth{TokenTTL: time.Hour}, RateLimit: RateLimit{Disabled: true}}
		assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := Config{Store: Store{Backend: "mongo"}, Auth: Auth{TokenTTL: time.Hour}, RateLimit: RateLimit{Disabled: true}}
		assert.ErrorContains(t, cfg.Validate(), "unknown STORE_BACKEND")
	})

	t.Run("production requires signing key", func(t *testing.T) {
		cfg := Config{
			Environment: "production",
			Store:       Store{Backend: BackendMemory},
			Auth:        Auth{JWTSigningKey: devSigningKey, TokenTTL: time.Hour},
			RateLimit:   RateLimit{Disabled: true},
		}
		assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})
}
