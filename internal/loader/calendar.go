package loader

import "time"

// fixedHolidays are exchange holidays observed on the same calendar date
// every year, as month*100+day. The movable holidays (Happy Monday laws,
// equinoxes) are approximated by the extra dates a deployment passes to
// NewCalendar.
var fixedHolidays = map[int]bool{
	101:  true, // New Year
	102:  true,
	103:  true,
	211:  true, // National Foundation Day
	223:  true, // Emperor's Birthday
	429:  true, // Showa Day
	503:  true, // Constitution Day
	504:  true, // Greenery Day
	505:  true, // Children's Day
	811:  true, // Mountain Day
	1103: true, // Culture Day
	1123: true, // Labor Thanksgiving
	1231: true, // year-end market close
}

// Calendar answers trading-day questions for the exchange the data comes
// from. All dates are evaluated in the calendar's location.
type Calendar struct {
	loc   *time.Location
	extra map[string]bool // additional closed dates, "2006-01-02"
}

// NewCalendar creates a Calendar for the given location. extraClosed lists
// additional closed dates in "2006-01-02" form (ad hoc closures, movable
// holidays).
func NewCalendar(loc *time.Location, extraClosed []string) *Calendar {
	extra := make(map[string]bool, len(extraClosed))
	for _, d := range extraClosed {
		extra[d] = true
	}
	return &Calendar{loc: loc, extra: extra}
}

// Location returns the calendar's time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay reports whether the date of t (in the calendar's location) is
// a trading day.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if fixedHolidays[int(t.Month())*100+t.Day()] {
		return false
	}
	return !c.extra[t.Format("2006-01-02")]
}

// TradingDaysBefore returns the n trading days strictly before the date of
// cutoff, in ascending order, as midnights in the calendar's location.
func (c *Calendar) TradingDaysBefore(cutoff time.Time, n int) []time.Time {
	cutoff = cutoff.In(c.loc)
	day := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, c.loc)

	out := make([]time.Time, 0, n)
	for len(out) < n {
		day = day.AddDate(0, 0, -1)
		if c.IsTradingDay(day) {
			out = append(out, day)
		}
		// Bail out if the calendar is somehow all holidays.
		if cutoff.Sub(day) > 366*5*24*time.Hour {
			break
		}
	}
	// Reverse into ascending order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
