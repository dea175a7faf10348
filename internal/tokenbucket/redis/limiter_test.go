// Package tbredis_test contains unit tests for the Redis Token Bucket limiter.
package tbredis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	tbredis "learn.wordgate/internal/tokenbucket/redis"
)

var mockTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

const (
	limiterKey = "test_tb"
	redisKey   = "token_bucket:test_tb:user1"
	capacity   = int64(4)
	window     = 8 * time.Second
)

func newLimiter(t *testing.T) (*tbredis.Limiter, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	l, err := tbredis.NewLimiter(limiterKey, core.Config{MaxRequests: capacity, Window: window}, db, tbredis.WithClock(clock.NewManual(mockTime)))
	require.NoError(t, err)
	return l, mock
}

func expectScript(mock redismock.ClientMock) *redismock.ExpectedCmd {
	return mock.ExpectEvalSha(tbredis.ScriptHash, []string{redisKey}, capacity, window.Milliseconds(), mockTime.UnixMilli())
}

func TestAllow_TokenBucketRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("Allowed", func(t *testing.T) {
		l, mock := newLimiter(t)
		expectScript(mock).SetVal([]interface{}{int64(1), "2.5"})

		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, core.Decision{Allowed: true, Limit: capacity, Remaining: 2}, d)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeniedReportsTimeToNextToken", func(t *testing.T) {
		l, mock := newLimiter(t)
		// 0.5 tokens per second: 0.5 missing takes one second.
		expectScript(mock).SetVal([]interface{}{int64(0), "0.5"})

		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, time.Second, d.RetryAfter)
	})

	t.Run("ScriptError", func(t *testing.T) {
		l, mock := newLimiter(t)
		boom := errors.New("connection refused")
		expectScript(mock).SetErr(boom)

		_, err := l.Allow(ctx, "user1")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("MalformedTokens", func(t *testing.T) {
		l, mock := newLimiter(t)
		expectScript(mock).SetVal([]interface{}{int64(1), "many"})

		_, err := l.Allow(ctx, "user1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse tokens")
	})

	t.Run("ShortResult", func(t *testing.T) {
		l, mock := newLimiter(t)
		expectScript(mock).SetVal([]interface{}{int64(1)})

		_, err := l.Allow(ctx, "user1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected result")
	})
}
