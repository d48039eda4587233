package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lifeflow/pkg/domain-errors"
)

func TestLockRunner(t *testing.T) {
	t.Run("serializes concurrent units of work", func(t *testing.T) {
		r := NewLockRunner()
		counter := 0
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.RunInTx(context.Background(), func(context.Context) error {
					v := counter
					counter = v + 1
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})

	t.Run("nested call does not deadlock", func(t *testing.T) {
		r := NewLockRunner()
		err := r.RunInTx(context.Background(), func(ctx context.Context) error {
			return r.RunInTx(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
	})

	t.Run("cancelled context is rejected", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewLockRunner().RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("propagates fn error", func(t *testing.T) {
		boom := errors.New("boom")
		err := NewLockRunner().RunInTx(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}

func TestSQLRunner(t *testing.T) {
	t.Run("commits on success and exposes tx in context", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err = NewSQLRunner(db).RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := From(ctx)
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewSQLRunner(db).RunInTx(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is unavailable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("conn refused"))

		err = NewSQLRunner(db).RunInTx(context.Background(), func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
