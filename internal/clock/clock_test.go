package clock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"learn.wordgate/internal/clock"
)

func TestWindowStart(t *testing.T) {
	sec := func(s int64) time.Time { return time.Unix(s, 0) }

	assert.Equal(t, sec(20), clock.WindowStart(sec(23), 10*time.Second))
	assert.Equal(t, sec(30), clock.WindowStart(sec(30), 10*time.Second))
	assert.Equal(t, sec(0), clock.WindowStart(time.Unix(0, 999), time.Microsecond))
	// Before the epoch the floor still goes down, not towards zero.
	assert.Equal(t, sec(-10), clock.WindowStart(sec(-3), 10*time.Second))
}

func TestManual(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	m := clock.NewManual(start)
	assert.Equal(t, start, m.Now())

	m.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), m.Now())

	m.Set(start.Add(-time.Hour))
	assert.Equal(t, start.Add(-time.Hour), m.Now())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Advance(time.Second)
			_ = m.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, start.Add(-time.Hour+8*time.Second), m.Now())
}

func TestFunc(t *testing.T) {
	fixed := time.Unix(42, 0)
	var c clock.Clock = clock.Func(func() time.Time { return fixed })
	assert.Equal(t, fixed, c.Now())
}
