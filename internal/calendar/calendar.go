// Package calendar decides which dates the Korean exchange trades on and
// whether today's session has closed for reporting.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrCalendarMisconfigured is returned when no trading day is found within maxLookback days
var ErrCalendarMisconfigured = errors.New("trading calendar misconfigured: no trading day found")

const (
	dateKeyLayout = "2006-01-02"
	maxLookback   = 30

	// DefaultCloseHour and DefaultCloseMinute are the local time after which
	// the day's session is considered settled for reporting.
	DefaultCloseHour   = 16
	DefaultCloseMinute = 15
)

// TradingCalendar answers trading-day questions for one exchange
type TradingCalendar struct {
	loc         *time.Location
	holidays    map[string]bool
	closeHour   int
	closeMinute int
}

// Option customizes a TradingCalendar
type Option func(*TradingCalendar)

// WithLocation sets the exchange timezone
func WithLocation(loc *time.Location) Option {
	return func(c *TradingCalendar) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithHolidays replaces the holiday table
func WithHolidays(days []time.Time) Option {
	return func(c *TradingCalendar) {
		c.holidays = make(map[string]bool, len(days))
		for _, d := range days {
			c.holidays[d.Format(dateKeyLayout)] = true
		}
	}
}

// WithCloseThreshold sets the local report threshold
func WithCloseThreshold(hour, minute int) Option {
	return func(c *TradingCalendar) {
		c.closeHour = hour
		c.closeMinute = minute
	}
}

// New creates a calendar for the Korea Exchange. Without WithLocation the
// calendar uses Asia/Seoul, falling back to a fixed UTC+9 zone when tzdata
// is unavailable.
func New(opts ...Option) *TradingCalendar {
	c := &TradingCalendar{
		loc:         seoul(),
		closeHour:   DefaultCloseHour,
		closeMinute: DefaultCloseMinute,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.holidays == nil {
		WithHolidays(DefaultHolidays(c.loc))(c)
	}
	return c
}

func seoul() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// Location returns the exchange timezone
func (c *TradingCalendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return !c.holidays[local.Format(dateKeyLayout)]
}

// IsHoliday reports whether t is listed in the holiday table
func (c *TradingCalendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.In(c.loc).Format(dateKeyLayout)]
}

// PreviousTradingDay walks back from t one day at a time and returns the
// first trading day, at midnight local time.
func (c *TradingCalendar) PreviousTradingDay(t time.Time) (time.Time, error) {
	local := t.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for i := 0; i < maxLookback; i++ {
		day = day.AddDate(0, 0, -1)
		if c.IsTradingDay(day) {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w within %d days before %s", ErrCalendarMisconfigured, maxLookback, local.Format(dateKeyLayout))
}

// IsMarketClosed reports whether reporting on t's session is allowed.
// Non-trading days are always closed.
func (c *TradingCalendar) IsMarketClosed(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return true
	}
	local := t.In(c.loc)
	threshold := time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, c.closeMinute, 0, 0, c.loc)
	return !local.Before(threshold)
}

// CanGenerateTodayReport is true only after the close threshold of a trading day
func (c *TradingCalendar) CanGenerateTodayReport(now time.Time) bool {
	return c.IsTradingDay(now) && c.IsMarketClosed(now)
}

// Holidays returns the listed closures in year, sorted
func (c *TradingCalendar) Holidays(year int) []time.Time {
	var out []time.Time
	for key := range c.holidays {
		d, err := time.ParseInLocation(dateKeyLayout, key, c.loc)
		if err != nil || d.Year() != year {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SameDay reports whether a and b fall on the same local date
func (c *TradingCalendar) SameDay(a, b time.Time) bool {
	return a.In(c.loc).Format(dateKeyLayout) == b.In(c.loc).Format(dateKeyLayout)
}

// Date returns midnight local time of the given calendar date
func (c *TradingCalendar) Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, c.loc)
}

// ParseDate parses YYYY-MM-DD or YYYYMMDD in the calendar's location
func (c *TradingCalendar) ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateKeyLayout, "20060102"} {
		if t, err := time.ParseInLocation(layout, s, c.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// DateKey formats t as YYYYMMDD, the artifact naming key
func DateKey(t time.Time) string {
	return t.Format("20060102")
}

// ISODate formats t as YYYY-MM-DD
func ISODate(t time.Time) string {
	return t.Format(dateKeyLayout)
}
