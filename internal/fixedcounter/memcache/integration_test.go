//go:build integration

package fcmemcache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	fcmemcache "learn.wordgate/internal/fixedcounter/memcache"
	"learn.wordgate/internal/testharness/memcachetest"
)

func TestFixedCounterMemcache_Integration(t *testing.T) {
	mcClient := memcachetest.SetupMemcachedClient(t)

	limiterKey := "test_fc_integration"
	now := time.Now()
	clk := clock.NewManual(now)
	window := 10 * time.Second
	key := fmt.Sprintf("%s:%s:%d", limiterKey, "user1", clock.WindowStart(now, window).UnixMilli())
	memcachetest.CleanupMemcachedKeys(t, mcClient, []string{key})
	defer memcachetest.CleanupMemcachedKeys(t, mcClient, []string{key})

	l, err := fcmemcache.NewLimiter(mcClient, limiterKey, core.Config{MaxRequests: 2, Window: window}, fcmemcache.WithClock(clk))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
