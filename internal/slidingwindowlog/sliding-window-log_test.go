package slidingwindowlog_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/slidingwindowlog"
)

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func TestNew_InvalidConfiguration(t *testing.T) {
	_, err := slidingwindowlog.New(core.Config{MaxRequests: 1, Window: -time.Second})
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestSlidingWindowLog(t *testing.T) {
	clk := clock.NewManual(at(0))
	l, err := slidingwindowlog.New(core.Config{MaxRequests: 3, Window: 10 * time.Second}, slidingwindowlog.WithClock(clk))
	require.NoError(t, err)

	clk.Set(at(1))
	require.True(t, l.AllowRequest())
	clk.Set(at(4))
	require.True(t, l.AllowRequest())
	clk.Set(at(9))
	require.True(t, l.AllowRequest())

	clk.Set(at(10))
	d := l.Decide()
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter, "oldest entry (t=1) leaves at t=11")

	// t=1 is exactly one window old and no longer counts.
	clk.Set(at(11))
	assert.True(t, l.AllowRequest())
	assert.False(t, l.AllowRequest())

	clk.Set(at(14))
	d = l.Decide()
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
	assert.Equal(t, 5*time.Second, d.RetryAfter)
}

func TestSlidingWindowLog_NoBoundaryBurst(t *testing.T) {
	clk := clock.NewManual(at(9))
	l, err := slidingwindowlog.New(core.Config{MaxRequests: 5, Window: 10 * time.Second}, slidingwindowlog.WithClock(clk))
	require.NoError(t, err)

	admitted := 0
	for i := 0; i < 5; i++ {
		if l.AllowRequest() {
			admitted++
		}
	}
	clk.Set(at(10))
	for i := 0; i < 5; i++ {
		if l.AllowRequest() {
			admitted++
		}
	}
	assert.Equal(t, 5, admitted)
}

func TestSlidingWindowLog_ClockMovingBackward(t *testing.T) {
	clk := clock.NewManual(at(100))
	l, err := slidingwindowlog.New(core.Config{MaxRequests: 2, Window: 10 * time.Second}, slidingwindowlog.WithClock(clk))
	require.NoError(t, err)

	require.True(t, l.AllowRequest())
	clk.Set(at(40))
	require.True(t, l.AllowRequest())

	d := l.Decide()
	assert.False(t, d.Allowed)
	assert.Equal(t, 10*time.Second, d.RetryAfter, "both entries are held at t=100")

	clk.Set(at(109))
	assert.False(t, l.AllowRequest())
	clk.Set(at(110))
	assert.True(t, l.AllowRequest())
	assert.True(t, l.AllowRequest())
	assert.False(t, l.AllowRequest())
}

func TestAllowRequest_Concurrency(t *testing.T) {
	const max = 50
	l, err := slidingwindowlog.New(core.Config{MaxRequests: max, Window: time.Minute}, slidingwindowlog.WithClock(clock.NewManual(at(100))))
	require.NoError(t, err)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if l.AllowRequest() {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(max), admitted.Load())
}
