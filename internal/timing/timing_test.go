package timing_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/envlogger/internal/timing"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestElapsedAcrossRollover(t *testing.T) {
	assert.Equal(t, timing.Millis(7), timing.Elapsed(5, 4294967294))
	assert.Equal(t, timing.Millis(0), timing.Elapsed(100, 100))
	assert.Equal(t, timing.Millis(250), timing.Elapsed(1250, 1000))
}

func TestReached(t *testing.T) {
	assert.True(t, timing.Reached(5, 4294967294, 7))
	assert.False(t, timing.Reached(5, 4294967294, 8))
	assert.True(t, timing.Reached(10, 10, 0))
}

func TestFromDuration(t *testing.T) {
	assert.Equal(t, timing.Millis(1500), timing.FromDuration(1500*time.Millisecond))
	assert.Equal(t, timing.Millis(0), timing.FromDuration(-time.Second))
	assert.Equal(t, timing.MaxSpan, timing.FromDuration(100*24*time.Hour))
	assert.Equal(t, 2*time.Second, timing.Millis(2000).Duration())
}

func TestStamp(t *testing.T) {
	var s timing.Stamp
	_, ok := s.Get()
	assert.False(t, ok)

	// zero is a legitimate counter value, not "unset"
	s.Set(0)
	at, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, timing.Millis(0), at)

	s.Clear()
	assert.False(t, s.IsSet())
}

func TestClockFollowsMock(t *testing.T) {
	mock := clock.NewMock()
	c := timing.NewClock(mock)

	start := c.Millis()
	mock.Add(1500 * time.Millisecond)
	assert.Equal(t, timing.Millis(1500), timing.Elapsed(c.Millis(), start))
}

func TestClockRollsOver(t *testing.T) {
	mock := clock.NewMock()
	c := timing.NewClock(mock)

	mock.Add((1<<32 - 2) * time.Millisecond)
	start := c.Millis()
	assert.Equal(t, timing.Millis(4294967294), start)

	mock.Add(7 * time.Millisecond)
	assert.Equal(t, timing.Millis(5), c.Millis())
	assert.Equal(t, timing.Millis(7), timing.Elapsed(c.Millis(), start))
}

func TestClockIgnoresBackwardStep(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	c := timing.NewClock(mock)

	mock.Add(100 * time.Millisecond)
	before := c.Millis()
	assert.Equal(t, timing.Millis(100), before)

	mock.Set(mock.Now().Add(-time.Second))
	assert.Equal(t, before, c.Millis())
	assert.Equal(t, timing.Millis(0), timing.Elapsed(c.Millis(), before))

	// the counter resumes once the clock passes its old high mark
	mock.Add(1200 * time.Millisecond)
	assert.Equal(t, timing.Millis(300), c.Millis())
}
