//go:build integration

package swcmemcache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	swcmemcache "learn.wordgate/internal/slidingwindowcounter/memcache"
	"learn.wordgate/internal/testharness/memcachetest"
)

func TestSlidingWindowCounterMemcache_Integration(t *testing.T) {
	mcClient := memcachetest.SetupMemcachedClient(t)

	prefix := fmt.Sprintf("test_swc_integration_%d", time.Now().UnixNano())
	start := time.Unix(1_700_000_000, 0)
	keys := []string{
		fmt.Sprintf("%s:user1:%d", prefix, start.UnixMilli()),
		fmt.Sprintf("%s:user1:%d", prefix, start.Add(10*time.Second).UnixMilli()),
	}
	defer memcachetest.CleanupMemcachedKeys(t, mcClient, keys)

	clk := clock.NewManual(start)
	l, err := swcmemcache.NewLimiter(mcClient, prefix, core.Config{MaxRequests: 4, Window: 10 * time.Second}, swcmemcache.WithClock(clk))
	require.NoError(t, err)

	ctx := context.Background()
	admitted := 0
	for i := 0; i < 6; i++ {
		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		if d.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 4, admitted)

	// Halfway through the next window the previous four weigh two.
	clk.Set(start.Add(15 * time.Second))
	admitted = 0
	for i := 0; i < 4; i++ {
		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		if d.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}
