package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "lifeflow/pkg/domain-errors"
)

// DefaultTimeout bounds a unit of work when the caller has no deadline.
const DefaultTimeout = 5 * time.Second

// Runner provides a transactional boundary for multi-record mutations.
// Stores participating in the unit of work read the transaction from ctx.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner wraps a database/sql transaction around fn.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db, timeout: DefaultTimeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	ctx, cancel, err := prepare(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}

// LockRunner serializes units of work over in-memory stores with a coarse lock.
// In-memory stores cannot roll back, so services validate before the first write.
type LockRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewLockRunner() *LockRunner {
	return &LockRunner{timeout: DefaultTimeout}
}

type lockHeldKey struct{}

func (r *LockRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(lockHeldKey{}).(bool); held {
		return fn(ctx)
	}
	ctx, cancel, err := prepare(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(context.WithValue(ctx, lockHeldKey{}, true))
}

func prepare(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
