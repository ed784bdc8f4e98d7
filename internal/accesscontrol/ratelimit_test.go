package accesscontrol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimiter_DeniesOverLimit(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryCounterStore(), false, zap.NewNop())
	ctx := context.Background()

	check := RateCheck{Tier: TierUser, Key: "42", Limit: 5, Window: time.Minute}

	for i := 1; i <= 5; i++ {
		status, err := limiter.Check(ctx, check)
		require.NoError(t, err)
		assert.True(t, status.Allowed, "request %d should pass", i)
		assert.Equal(t, int64(5-i), status.Remaining)
	}

	status, err := limiter.Check(ctx, check)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, int64(0), status.Remaining)
	assert.Equal(t, int64(5), status.Limit)
	assert.WithinDuration(t, time.Now().Add(time.Minute), status.ResetAt, 2*time.Second)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryCounterStore(), false, zap.NewNop())
	ctx := context.Background()

	check := RateCheck{Tier: TierIP, Key: "10.0.0.1", Limit: 1, Window: 20 * time.Millisecond}

	status, err := limiter.Check(ctx, check)
	require.NoError(t, err)
	assert.True(t, status.Allowed)

	status, err = limiter.Check(ctx, check)
	require.NoError(t, err)
	assert.False(t, status.Allowed)

	time.Sleep(25 * time.Millisecond)

	status, err = limiter.Check(ctx, check)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
}

func TestRateLimiter_TiersAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryCounterStore(), false, zap.NewNop())
	ctx := context.Background()

	userCheck := RateCheck{Tier: TierUser, Key: "k", Limit: 1, Window: time.Minute}
	ipCheck := RateCheck{Tier: TierIP, Key: "k", Limit: 1, Window: time.Minute}

	status, err := limiter.Check(ctx, userCheck)
	require.NoError(t, err)
	assert.True(t, status.Allowed)

	// Same key string in a different tier keeps its own counter.
	status, err = limiter.Check(ctx, ipCheck)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
}

func TestRateLimiter_CheckAll(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryCounterStore(), false, zap.NewNop())
	ctx := context.Background()

	checks := []RateCheck{
		{Tier: TierAPIKey, Key: "key-1", Limit: 100, Window: time.Minute},
		{Tier: TierUser, Key: "42", Limit: 2, Window: time.Minute},
		{Tier: TierIP, Key: "10.0.0.1", Limit: 100, Window: time.Minute},
	}

	result, err := limiter.CheckAll(ctx, checks)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Len(t, result.Statuses, 3)
	assert.Equal(t, TierUser, result.Restrictive.Tier)

	limiter.CheckAll(ctx, checks)
	result, err = limiter.CheckAll(ctx, checks)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, TierUser, result.Restrictive.Tier)
	assert.False(t, result.Restrictive.Allowed)
	assert.Equal(t, int64(0), result.Restrictive.Remaining)
}

func TestRateLimiter_ConcurrentIncrementsDoNotLoseUpdates(t *testing.T) {
	store := NewMemoryCounterStore()
	limiter := NewRateLimiter(store, false, zap.NewNop())
	ctx := context.Background()

	const workers = 50
	const perWorker = 20
	check := RateCheck{Tier: TierUser, Key: "42", Limit: workers * perWorker, Window: time.Minute}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := limiter.Check(ctx, check)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// The next increment must see every prior one: exactly limit+1 total.
	status, err := limiter.Check(ctx, check)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, int64(0), status.Remaining)
}

type failingCounterStore struct{}

func (failingCounterStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store unreachable")
}

func TestRateLimiter_FailOpenAdmits(t *testing.T) {
	limiter := NewRateLimiter(failingCounterStore{}, true, zap.NewNop())

	status, err := limiter.Check(context.Background(), RateCheck{Tier: TierIP, Key: "k", Limit: 5, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, int64(5), status.Remaining)
}

func TestRateLimiter_FailClosedDenies(t *testing.T) {
	limiter := NewRateLimiter(failingCounterStore{}, false, zap.NewNop())

	status, err := limiter.Check(context.Background(), RateCheck{Tier: TierIP, Key: "k", Limit: 5, Window: time.Minute})
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, int64(0), status.Remaining)
}
