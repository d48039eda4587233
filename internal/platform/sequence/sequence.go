// Package sequence hands out per-day display sequence numbers. Each
// implementation increments atomically, so concurrent creations on the same
// day never share a number.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lifeflow/pkg/platform/tx"
)

// Scopes used for display identifiers.
const (
	ScopeDonor    = "donor"
	ScopeRequest  = "request"
	ScopeCampaign = "campaign"
)

// Generator returns a strictly increasing number per (scope, UTC day),
// starting at 1.
type Generator interface {
	Next(ctx context.Context, scope string, day time.Time) (int64, error)
}

func dayKey(day time.Time) string {
	return day.UTC().Format("060102")
}

// Memory is a process-local generator.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

func (m *Memory) Next(_ context.Context, scope string, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + ":" + dayKey(day)
	m.counters[key]++
	return m.counters[key], nil
}

const (
	redisKeyPrefix = "seq:"
	redisKeyTTL    = 48 * time.Hour
)

// Redis increments a per-day key shared by every replica.
type Redis struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Next(ctx context.Context, scope string, day time.Time) (int64, error) {
	key := redisKeyPrefix + scope + ":" + dayKey(day)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, redisKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Postgres keeps counters in the id_sequences table. It joins a transaction
// carried in ctx so a rolled-back creation also rolls back its number.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Next(ctx context.Context, scope string, day time.Time) (int64, error) {
	query := `
		INSERT INTO id_sequences (scope, day, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (scope, day) DO UPDATE SET
			value = id_sequences.value + 1
		RETURNING value
	`
	var value int64
	d := day.UTC().Truncate(24 * time.Hour)
	if err := tx.Executor(ctx, p.db).QueryRowContext(ctx, query, scope, d).Scan(&value); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", scope, err)
	}
	return value, nil
}
