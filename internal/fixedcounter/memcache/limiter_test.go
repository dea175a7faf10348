package fcmemcache_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	fcmemcache "learn.wordgate/internal/fixedcounter/memcache"
	"learn.wordgate/internal/memcacheiface"
)

// mockMemcacheClient keeps counters in a map and lets tests override each call.
type mockMemcacheClient struct {
	mu       sync.Mutex
	counters map[string]uint64
	added    []*memcache.Item

	AddFunc       func(item *memcache.Item) error
	IncrementFunc func(key string, delta uint64) (uint64, error)
}

func newMockMemcacheClient() *mockMemcacheClient {
	return &mockMemcacheClient{counters: make(map[string]uint64)}
}

func (m *mockMemcacheClient) Add(item *memcache.Item) error {
	if m.AddFunc != nil {
		return m.AddFunc(item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[item.Key]; ok {
		return memcache.ErrNotStored
	}
	m.counters[item.Key] = 1
	m.added = append(m.added, item)
	return nil
}

func (m *mockMemcacheClient) Increment(key string, delta uint64) (uint64, error) {
	if m.IncrementFunc != nil {
		return m.IncrementFunc(key, delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[key]; !ok {
		return 0, memcache.ErrCacheMiss
	}
	m.counters[key] += delta
	return m.counters[key], nil
}

var _ memcacheiface.Client = (*mockMemcacheClient)(nil)

const (
	keyPrefix  = "test_fc_allow"
	identifier = "user1"
)

func newLimiter(t *testing.T, client memcacheiface.Client, limit int64, clk clock.Clock) *fcmemcache.Limiter {
	t.Helper()
	l, err := fcmemcache.NewLimiter(client, keyPrefix, core.Config{MaxRequests: limit, Window: 60 * time.Second}, fcmemcache.WithClock(clk))
	require.NoError(t, err)
	return l
}

func TestNewLimiter_FixedCounterMemcache(t *testing.T) {
	_, err := fcmemcache.NewLimiter(newMockMemcacheClient(), keyPrefix, core.Config{MaxRequests: 0, Window: time.Second})
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestAllow_FixedCounterMemcache(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_030, 0) // window [1_699_999_980, 1_700_000_040)
	expectedKey := fmt.Sprintf("%s:%s:%d", keyPrefix, identifier, int64(1_699_999_980_000))

	t.Run("CountsWithinWindow", func(t *testing.T) {
		client := newMockMemcacheClient()
		l := newLimiter(t, client, 3, clock.NewManual(now))

		for i := 0; i < 3; i++ {
			d, err := l.Allow(ctx, identifier)
			require.NoError(t, err)
			require.Truef(t, d.Allowed, "request %d", i+1)
		}
		d, err := l.Allow(ctx, identifier)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(0), d.Remaining)
		assert.Equal(t, 10*time.Second, d.RetryAfter)

		require.Len(t, client.added, 1)
		assert.Equal(t, expectedKey, client.added[0].Key)
		assert.Equal(t, "1", string(client.added[0].Value))
		assert.Equal(t, int32(60), client.added[0].Expiration)
	})

	t.Run("NewWindowUsesNewKey", func(t *testing.T) {
		client := newMockMemcacheClient()
		clk := clock.NewManual(now)
		l := newLimiter(t, client, 1, clk)

		d, err := l.Allow(ctx, identifier)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		clk.Set(time.Unix(1_700_000_040, 0))
		d, err = l.Allow(ctx, identifier)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Len(t, client.added, 2)
	})

	t.Run("SubSecondWindowRollsOver", func(t *testing.T) {
		client := newMockMemcacheClient()
		clk := clock.NewManual(time.Unix(100, 0))
		l, err := fcmemcache.NewLimiter(client, keyPrefix, core.Config{MaxRequests: 2, Window: 500 * time.Millisecond}, fcmemcache.WithClock(clk))
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			d, err := l.Allow(ctx, identifier)
			require.NoError(t, err)
			require.Truef(t, d.Allowed, "request %d", i+1)
		}

		// [100.5s, 101s) is a new window.
		clk.Set(time.Unix(100, int64(600*time.Millisecond)))
		d, err := l.Allow(ctx, identifier)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(1), d.Remaining)

		require.Len(t, client.added, 2)
		assert.Equal(t, fmt.Sprintf("%s:%s:%d", keyPrefix, identifier, int64(100_500)), client.added[1].Key)
		assert.Equal(t, int32(1), client.added[1].Expiration)
	})

	t.Run("AddError", func(t *testing.T) {
		client := newMockMemcacheClient()
		client.AddFunc = func(*memcache.Item) error { return memcache.ErrServerError }
		l := newLimiter(t, client, 3, clock.NewManual(now))

		_, err := l.Allow(ctx, identifier)
		require.Error(t, err)
		assert.ErrorIs(t, err, memcache.ErrServerError)
		assert.True(t, strings.Contains(err.Error(), "memcache Add operation failed"))
	})

	t.Run("IncrementError", func(t *testing.T) {
		client := newMockMemcacheClient()
		client.AddFunc = func(*memcache.Item) error { return memcache.ErrNotStored }
		client.IncrementFunc = func(string, uint64) (uint64, error) { return 0, memcache.ErrCacheMiss }
		l := newLimiter(t, client, 3, clock.NewManual(now))

		_, err := l.Allow(ctx, identifier)
		assert.ErrorIs(t, err, memcache.ErrCacheMiss)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		client := newMockMemcacheClient()
		l := newLimiter(t, client, 3, clock.NewManual(now))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := l.Allow(cctx, identifier)
		assert.Equal(t, context.Canceled, err)
		assert.Empty(t, client.added)
	})
}
