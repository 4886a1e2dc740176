// ABOUTME: CyclePeriod model for menstrual calendar updates.
// ABOUTME: Expands a start/end range into the full list of calendar dates.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date form Garmin uses everywhere.
const DateLayout = "2006-01-02"

// MaxPeriodDays bounds the length of a single logged period.
const MaxPeriodDays = 31

// ErrPeriodTooLong is returned for periods longer than MaxPeriodDays.
var ErrPeriodTooLong = errors.New("period is too long")

// CyclePeriod is an inclusive range of calendar days.
type CyclePeriod struct {
	Start time.Time
	End   time.Time
}

// NewCyclePeriod builds a period from two calendar days. Times are truncated
// to their date; end must not be before start.
func NewCyclePeriod(start, end time.Time) (CyclePeriod, error) {
	s := civilDay(start)
	e := civilDay(end)
	if e.Before(s) {
		return CyclePeriod{}, fmt.Errorf("end date %s is before start date %s", e.Format(DateLayout), s.Format(DateLayout))
	}
	p := CyclePeriod{Start: s, End: e}
	if days := p.Days(); days > MaxPeriodDays {
		return CyclePeriod{}, fmt.Errorf("%w: %d days, at most %d", ErrPeriodTooLong, days, MaxPeriodDays)
	}
	return p, nil
}

// ParseCyclePeriod parses two YYYY-MM-DD strings into a period.
func ParseCyclePeriod(start, end string) (CyclePeriod, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return CyclePeriod{}, fmt.Errorf("invalid start date %q: expected YYYY-MM-DD", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return CyclePeriod{}, fmt.Errorf("invalid end date %q: expected YYYY-MM-DD", end)
	}
	return NewCyclePeriod(s, e)
}

// Dates lists every day in the period, in order, as YYYY-MM-DD.
func (p CyclePeriod) Dates() []string {
	dates := make([]string, 0, p.Days())
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// Days returns the number of days in the period.
func (p CyclePeriod) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// StartDate returns the first day as YYYY-MM-DD.
func (p CyclePeriod) StartDate() string {
	return p.Start.Format(DateLayout)
}

// EndDate returns the last day as YYYY-MM-DD.
func (p CyclePeriod) EndDate() string {
	return p.End.Format(DateLayout)
}

// civilDay keeps the calendar date and drops the clock and zone, so that
// AddDate never crosses a DST boundary.
func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
