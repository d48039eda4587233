package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable at startup.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the full process configuration, built once in main.
type Config struct {
	Environment string
	Server      Server
	Store       Store
	Redis       RedisConfig
	Auth        Auth
	RateLimit   RateLimit
	Activity    Activity
	Dashboard   Dashboard
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigin      string
}

// Store selects the repository implementations. There is no runtime fallback
// between backends.
type Store struct {
	Backend        string
	PostgresDSN    string
	MaxOpenConns   int
	MigrateOnStart bool
}

// RedisConfig is optional; an empty URL disables Redis-backed components.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	BcryptCost    int
	SeedDemoUsers bool
}

type RateLimit struct {
	Disabled bool
	Requests int
	Window   time.Duration
}

type Activity struct {
	KafkaBrokers []string
	KafkaTopic   string
}

type Dashboard struct {
	// DemoFallback serves the fixed demonstration dataset, flagged as
	// degraded, when a source store fails.
	DemoFallback bool
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	env := getString("APP_ENV", "development")
	backend := strings.ToLower(getString("STORE_BACKEND", BackendMemory))

	return Config{
		Environment: env,
		Server: Server{
			Addr:            getString("LIFEFLOW_ADDR", ":8080"),
			RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigin:      getString("CORS_ORIGIN", ""),
		},
		Store: Store{
			Backend:        backend,
			PostgresDSN:    getString("DATABASE_URL", ""),
			MaxOpenConns:   getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MigrateOnStart: getBool("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          getString("REDIS_URL", ""),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: getString("JWT_SECRET", devSigningKey),
			Issuer:        getString("JWT_ISSUER", "lifeflow"),
			Audience:      getString("JWT_AUDIENCE", "lifeflow-api"),
			TokenTTL:      getDuration("JWT_TTL", 24*time.Hour),
			BcryptCost:    getInt("BCRYPT_COST", 12),
			SeedDemoUsers: getBool("SEED_DEMO_USERS", backend == BackendMemory),
		},
		RateLimit: RateLimit{
			Disabled: getBool("RATE_LIMIT_DISABLED", false),
			Requests: getInt("RATE_LIMIT_REQUESTS", 100),
			Window:   getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Activity: Activity{
			KafkaBrokers: getList("ACTIVITY_KAFKA_BROKERS"),
			KafkaTopic:   getString("ACTIVITY_KAFKA_TOPIC", "lifeflow.activity"),
		},
		Dashboard: Dashboard{
			DemoFallback: getBool("DASHBOARD_DEMO_FALLBACK", false),
		},
	}
}

// IsProduction reports whether internal error detail must be hidden.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations that would silently degrade at runtime.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if !c.RateLimit.Disabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate limit requests and window must be positive"))
	}
	return errors.Join(errs...)
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
