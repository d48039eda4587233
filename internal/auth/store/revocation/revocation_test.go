package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeflow/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL().WithClock(func() time.Time { return now })

	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Hour))

	revoked, err := trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = trl.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = trl.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked, "entry expires with the token")

	assert.ErrorIs(t, trl.RevokeToken(ctx, "jti-3", 0), sentinel.ErrInvalidState)
}

func TestRedisTRL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	trl := NewRedisTRL(client)

	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))
	assert.True(t, mr.Exists("trl:jti:jti-1"))

	revoked, err := trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.Close()
	_, err = trl.IsRevoked(ctx, "jti-1")
	assert.Error(t, err)
}

func TestPostgresTRL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trl := NewPostgresTRL(db, WithPostgresClock(func() time.Time { return now }))
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO token_revocations").
		WithArgs("jti-1", now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Hour))

	mock.ExpectQuery("SELECT expires_at FROM token_revocations").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(now.Add(time.Hour)))
	revoked, err := trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mock.ExpectQuery("SELECT expires_at FROM token_revocations").
		WithArgs("jti-2").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}))
	revoked, err = trl.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mock.ExpectExec("DELETE FROM token_revocations").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := trl.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, mock.ExpectationsWereMet())
}
