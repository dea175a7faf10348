package swredis_test

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
	swredis "learn.wordgate/internal/slidingwindowcounter/redis"
)

// mockTime sits 3s into a 10s window.
var mockTime = time.Date(2024, time.January, 1, 12, 0, 3, 0, time.UTC)

const (
	limiterName = "test_sw"
	limit       = int64(10)
	windowSize  = 10 * time.Second
)

func newLimiter(t *testing.T) (*swredis.Limiter, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	l, err := swredis.NewLimiter(limiterName, core.Config{MaxRequests: limit, Window: windowSize}, db, swredis.WithClock(clock.NewManual(mockTime)))
	require.NoError(t, err)
	return l, mock
}

func expectScript(mock redismock.ClientMock) *redismock.ExpectedCmd {
	return mock.ExpectEvalSha(swredis.ScriptHash, []string{limiterName + ":user1"}, mockTime.UnixMilli(), windowSize.Milliseconds(), limit)
}

func TestNewLimiter_SlidingWindowRedis(t *testing.T) {
	db, _ := redismock.NewClientMock()
	_, err := swredis.NewLimiter(limiterName, core.Config{MaxRequests: limit, Window: 0}, db)
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestAllow_SlidingWindowRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("Allowed", func(t *testing.T) {
		l, mock := newLimiter(t)
		expectScript(mock).SetVal([]interface{}{int64(1), "6.5"})

		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		assert.Equal(t, core.Decision{Allowed: true, Limit: limit, Remaining: 3}, d)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Denied", func(t *testing.T) {
		l, mock := newLimiter(t)
		expectScript(mock).SetVal([]interface{}{int64(0), "9.7"})

		d, err := l.Allow(ctx, "user1")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, int64(0), d.Remaining)
		assert.Equal(t, 7*time.Second, d.RetryAfter)
	})

	t.Run("ScriptError", func(t *testing.T) {
		l, mock := newLimiter(t)
		boom := errors.New("READONLY You can't write against a read only replica")
		expectScript(mock).SetErr(boom)

		_, err := l.Allow(ctx, "user1")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("UnexpectedResultType", func(t *testing.T) {
		l, mock := newLimiter(t)
		expectScript(mock).SetVal(int64(1))

		_, err := l.Allow(ctx, "user1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected result type")
	})
}
