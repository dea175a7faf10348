//go:build integration

package fcredis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	fcredis "learn.wordgate/internal/fixedcounter/redis"
	"learn.wordgate/internal/testharness/redistest"
)

func TestFixedCounterRedis_Integration(t *testing.T) {
	client := redistest.SetupRedisClient(t)
	defer client.Close()

	limiterKey := "test_fc_integration"
	redistest.CleanupRedisKeys(t, client, limiterKey, "")
	defer redistest.CleanupRedisKeys(t, client, limiterKey, "")

	ctx := context.Background()
	clk := clock.NewManual(time.Unix(1_700_000_009, 0))
	limiter, err := fcredis.NewLimiter(client, limiterKey, core.Config{MaxRequests: 5, Window: 10 * time.Second}, fcredis.WithClock(clk))
	require.NoError(t, err)

	admitted := 0
	for i := 0; i < 6; i++ {
		d, err := limiter.Allow(ctx, "user1")
		require.NoError(t, err)
		if d.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 5, admitted)

	// Next aligned window: a fresh counter.
	clk.Set(time.Unix(1_700_000_010, 0))
	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(ctx, "user1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := limiter.Allow(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
