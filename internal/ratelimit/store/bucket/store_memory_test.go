package bucket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"lifeflow/internal/ratelimit/models"
)

const (
	testLimit  = 10
	testWindow = 15 * time.Minute
)

// bucketStore is the behaviour both stores share.
type bucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

type BucketStoreSuite struct {
	suite.Suite
	newStore func(clock func() time.Time) bucketStore
	store    bucketStore
	ctx      context.Context
	now      time.Time
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, &BucketStoreSuite{newStore: func(clock func() time.Time) bucketStore {
		s := NewInMemoryBucketStore()
		s.now = clock
		return s
	}})
}

func TestRedisBucketStoreSuite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &BucketStoreSuite{newStore: func(clock func() time.Time) bucketStore {
		mr.FlushAll()
		s := NewRedis(client)
		s.now = clock
		return s
	}})
}

func (s *BucketStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore(func() time.Time { return s.now })
}

func (s *BucketStoreSuite) fill(key string, n int) *models.Result {
	var result *models.Result
	for range n {
		var err error
		result, err = s.store.Allow(s.ctx, key, testLimit, testWindow)
		s.Require().NoError(err)
	}
	return result
}

func (s *BucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result := s.fill("first", 1)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.WithinDuration(s.now.Add(testWindow), result.ResetAt, 0)
	})

	s.Run("requests up to the limit allowed", func() {
		result := s.fill("limit", testLimit)
		s.True(result.Allowed)
		s.Equal(0, result.Remaining)
	})

	s.Run("request over the limit denied with retry hint", func() {
		s.fill("over", testLimit)
		result := s.fill("over", 1)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(int(testWindow.Seconds()), result.RetryAfter)
	})

	s.Run("keys are independent", func() {
		s.fill("a", testLimit)
		s.True(s.fill("b", 1).Allowed)
	})
}

func (s *BucketStoreSuite) TestSlidingWindow() {
	start := s.now
	s.fill("slide", testLimit/2)
	s.now = start.Add(10 * time.Minute)
	s.fill("slide", testLimit/2)
	s.False(s.fill("slide", 1).Allowed)

	s.now = start.Add(testWindow)
	result := s.fill("slide", 1)
	s.True(result.Allowed)
	s.Equal(testLimit/2-1, result.Remaining)
	s.WithinDuration(start.Add(10*time.Minute).Add(testWindow), result.ResetAt, 0)
}

func (s *BucketStoreSuite) TestReset() {
	s.fill("reset", testLimit)
	s.Require().NoError(s.store.Reset(s.ctx, "reset"))
	s.True(s.fill("reset", 1).Allowed)
}

func TestInMemoryConcurrentAllow(t *testing.T) {
	store := NewInMemoryBucketStore()
	var wg sync.WaitGroup
	var allowed atomic.Int32
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.Allow(context.Background(), "concurrent", testLimit, testWindow)
			if err == nil && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != testLimit {
		t.Fatalf("allowed %d requests, want %d", got, testLimit)
	}
	count, err := store.CurrentCount(context.Background(), "concurrent")
	if err != nil || count != testLimit {
		t.Fatalf("count = %d, %v", count, err)
	}
}
