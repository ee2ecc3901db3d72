package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarTradingDays(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	cal := NewCalendar(loc, []string{"2026-08-25"})

	assert.True(t, cal.IsTradingDay(time.Date(2026, 8, 28, 10, 0, 0, 0, loc)))   // Friday
	assert.False(t, cal.IsTradingDay(time.Date(2026, 8, 29, 10, 0, 0, 0, loc)))  // Saturday
	assert.False(t, cal.IsTradingDay(time.Date(2026, 8, 30, 10, 0, 0, 0, loc)))  // Sunday
	assert.False(t, cal.IsTradingDay(time.Date(2026, 1, 1, 10, 0, 0, 0, loc)))   // New Year
	assert.False(t, cal.IsTradingDay(time.Date(2026, 12, 31, 10, 0, 0, 0, loc))) // year-end close
	assert.False(t, cal.IsTradingDay(time.Date(2026, 8, 25, 10, 0, 0, 0, loc)))  // ad hoc closure
}

func TestTradingDaysBefore(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	cal := NewCalendar(loc, nil)

	// Monday 2026-08-31: the three trading days before are Wed..Fri.
	cutoff := time.Date(2026, 8, 31, 9, 15, 0, 0, loc)
	days := cal.TradingDaysBefore(cutoff, 3)
	require.Len(t, days, 3)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, loc), days[0])
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, loc), days[1])
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, loc), days[2])

	// The cutoff's own date is never included.
	for _, d := range days {
		assert.True(t, d.Before(cutoff))
	}
}
