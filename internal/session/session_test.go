package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
)

func tokyoClock(t *testing.T) (*Clock, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	clock, err := NewClock(config.SessionConfig{
		MorningOpen:        "09:00",
		MorningClose:       "11:30",
		AfternoonOpen:      "12:30",
		AfternoonClose:     "15:00",
		CloseBufferMinutes: 5,
	}, loc)
	require.NoError(t, err)
	return clock, loc
}

func at(loc *time.Location, hour, min int) time.Time {
	return time.Date(2026, 8, 28, hour, min, 0, 0, loc)
}

func TestClockIn(t *testing.T) {
	clock, loc := tokyoClock(t)

	assert.False(t, clock.In(at(loc, 8, 59)))
	assert.True(t, clock.In(at(loc, 9, 0)))
	assert.True(t, clock.In(at(loc, 11, 29)))
	assert.False(t, clock.In(at(loc, 11, 30))) // close is exclusive
	assert.False(t, clock.In(at(loc, 12, 0)))  // lunch break
	assert.True(t, clock.In(at(loc, 12, 30)))
	assert.True(t, clock.In(at(loc, 14, 59)))
	assert.False(t, clock.In(at(loc, 15, 0)))
}

func TestClockTimeToClose(t *testing.T) {
	clock, loc := tokyoClock(t)

	assert.Equal(t, 30*time.Minute, clock.TimeToClose(at(loc, 11, 0)))
	assert.Equal(t, 150*time.Minute, clock.TimeToClose(at(loc, 12, 30)))
	assert.Equal(t, time.Duration(0), clock.TimeToClose(at(loc, 12, 0)))
}

func TestClockEntryBuffer(t *testing.T) {
	clock, loc := tokyoClock(t)

	assert.True(t, clock.CanEnter(at(loc, 11, 24)))
	// Within the 5-minute buffer before the morning close.
	assert.False(t, clock.CanEnter(at(loc, 11, 25)))
	assert.False(t, clock.CanEnter(at(loc, 11, 29)))
	assert.False(t, clock.CanEnter(at(loc, 12, 0)))
	assert.True(t, clock.CanEnter(at(loc, 12, 30)))
}

func TestClockMustExit(t *testing.T) {
	clock, loc := tokyoClock(t)

	assert.False(t, clock.MustExit(at(loc, 11, 24)))
	assert.True(t, clock.MustExit(at(loc, 11, 25)))
	assert.True(t, clock.MustExit(at(loc, 12, 0)))
	assert.False(t, clock.MustExit(at(loc, 14, 54)))
	assert.True(t, clock.MustExit(at(loc, 14, 55)))
}

func TestNewClockRejectsInvertedWindow(t *testing.T) {
	loc := time.UTC
	_, err := NewClock(config.SessionConfig{
		MorningOpen:    "11:30",
		MorningClose:   "09:00",
		AfternoonOpen:  "12:30",
		AfternoonClose: "15:00",
	}, loc)
	require.Error(t, err)
}
