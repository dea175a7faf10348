package swcmemcache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	swcmemcache "learn.wordgate/internal/slidingwindowcounter/memcache"
	"learn.wordgate/internal/testharness/memcachetest"
)

const keyPrefix = "test_swc"

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func newLimiter(t *testing.T, client *memcachetest.Fake, limit int64, clk clock.Clock) *swcmemcache.Limiter {
	t.Helper()
	l, err := swcmemcache.NewLimiter(client, keyPrefix, core.Config{MaxRequests: limit, Window: 10 * time.Second}, swcmemcache.WithClock(clk))
	require.NoError(t, err)
	return l
}

func admitN(t *testing.T, l *swcmemcache.Limiter, n int) int {
	t.Helper()
	admitted := 0
	for i := 0; i < n; i++ {
		d, err := l.Allow(context.Background(), "user1")
		require.NoError(t, err)
		if d.Allowed {
			admitted++
		}
	}
	return admitted
}

func TestAllow_SlidingWindowCounterMemcache(t *testing.T) {
	client := memcachetest.NewFake()
	clk := clock.NewManual(at(5))
	l := newLimiter(t, client, 10, clk)

	assert.Equal(t, 10, admitN(t, l, 15))
	// Rejected increments are taken back.
	v, ok := client.Value(keyPrefix + ":user1:0")
	require.True(t, ok)
	assert.Equal(t, "10", string(v))

	clk.Set(at(10))
	assert.Equal(t, 0, admitN(t, l, 5))

	clk.Set(at(15))
	assert.Equal(t, 5, admitN(t, l, 10))

	clk.Set(at(25))
	assert.Equal(t, 7, admitN(t, l, 10))

	clk.Set(at(45))
	assert.Equal(t, 10, admitN(t, l, 15))
}

func TestAllow_SlidingWindowCounterMemcache_Decision(t *testing.T) {
	client := memcachetest.NewFake()
	clk := clock.NewManual(at(4))
	l := newLimiter(t, client, 2, clk)

	d, err := l.Allow(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, core.Decision{Allowed: true, Limit: 2, Remaining: 1}, d)

	_, err = l.Allow(context.Background(), "user1")
	require.NoError(t, err)
	d, err = l.Allow(context.Background(), "user1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 6*time.Second, d.RetryAfter)

	// Previous window holds 2; one request fits once its weight drops to 0.5.
	clk.Set(at(10))
	d, err = l.Allow(context.Background(), "user1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 5*time.Second, d.RetryAfter)
}

func TestAllow_SlidingWindowCounterMemcache_Errors(t *testing.T) {
	t.Run("BackendError", func(t *testing.T) {
		client := memcachetest.NewFake()
		client.Err = errors.New("connection refused")
		l := newLimiter(t, client, 1, clock.NewManual(at(0)))

		_, err := l.Allow(context.Background(), "user1")
		assert.ErrorIs(t, err, client.Err)
	})

	t.Run("CorruptPreviousCounter", func(t *testing.T) {
		client := memcachetest.NewFake()
		client.Set(keyPrefix+":user1:0", []byte("abc"))
		l := newLimiter(t, client, 1, clock.NewManual(at(10)))

		_, err := l.Allow(context.Background(), "user1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse counter")
	})

	t.Run("PaddedPreviousCounter", func(t *testing.T) {
		client := memcachetest.NewFake()
		client.Set(keyPrefix+":user1:0", []byte("1 "))
		l := newLimiter(t, client, 1, clock.NewManual(at(10)))

		d, err := l.Allow(context.Background(), "user1")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		l := newLimiter(t, memcachetest.NewFake(), 1, clock.NewManual(at(0)))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := l.Allow(ctx, "user1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
