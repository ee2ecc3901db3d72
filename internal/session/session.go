// Package session models the exchange trading clock: two intraday windows
// (morning and afternoon) with a pre-close buffer during which no new
// positions may be opened.
package session

import (
	"fmt"
	"time"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
)

// window is one intraday trading window as minutes since midnight.
type window struct {
	open  int
	close int
}

// Clock answers in-session questions for instants in the data timezone.
type Clock struct {
	windows []window
	buffer  time.Duration
	loc     *time.Location
}

// NewClock builds a Clock from the session configuration. Times are parsed
// as "HH:MM" in loc.
func NewClock(cfg config.SessionConfig, loc *time.Location) (*Clock, error) {
	parse := func(name, s string) (int, error) {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("session: parse %s %q: %w", name, s, err)
		}
		return t.Hour()*60 + t.Minute(), nil
	}

	mo, err := parse("morning_open", cfg.MorningOpen)
	if err != nil {
		return nil, err
	}
	mc, err := parse("morning_close", cfg.MorningClose)
	if err != nil {
		return nil, err
	}
	ao, err := parse("afternoon_open", cfg.AfternoonOpen)
	if err != nil {
		return nil, err
	}
	ac, err := parse("afternoon_close", cfg.AfternoonClose)
	if err != nil {
		return nil, err
	}
	for _, w := range []struct {
		name        string
		open, close int
	}{
		{"morning", mo, mc},
		{"afternoon", ao, ac},
	} {
		if w.open >= w.close {
			return nil, fmt.Errorf("session: %s window open %02d:%02d not before close %02d:%02d",
				w.name, w.open/60, w.open%60, w.close/60, w.close%60)
		}
	}

	return &Clock{
		windows: []window{{mo, mc}, {ao, ac}},
		buffer:  time.Duration(cfg.CloseBufferMinutes) * time.Minute,
		loc:     loc,
	}, nil
}

// minuteOf returns t's minutes since midnight in the clock's location.
func (c *Clock) minuteOf(t time.Time) int {
	t = t.In(c.loc)
	return t.Hour()*60 + t.Minute()
}

// In reports whether t falls inside an active trading window. Opens are
// inclusive, closes exclusive.
func (c *Clock) In(t time.Time) bool {
	m := c.minuteOf(t)
	for _, w := range c.windows {
		if m >= w.open && m < w.close {
			return true
		}
	}
	return false
}

// TimeToClose returns the time remaining until the close of the window
// containing t, or zero when t is outside every window.
func (c *Clock) TimeToClose(t time.Time) time.Duration {
	m := c.minuteOf(t)
	for _, w := range c.windows {
		if m >= w.open && m < w.close {
			return time.Duration(w.close-m) * time.Minute
		}
	}
	return 0
}

// CanEnter reports whether a new position may be opened at t: inside a
// window with more than the pre-close buffer remaining.
func (c *Clock) CanEnter(t time.Time) bool {
	return c.In(t) && c.TimeToClose(t) > c.buffer
}

// MustExit reports whether an open position must be closed at t: outside
// every window, or within the pre-close buffer of the current one.
func (c *Clock) MustExit(t time.Time) bool {
	return !c.In(t) || c.TimeToClose(t) <= c.buffer
}
