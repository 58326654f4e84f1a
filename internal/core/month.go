package core

import (
	"fmt"
	"time"
)

// Month is a calendar month in a specific year and location. The underlying
// time is always 00:00 on the first day of the month.
type Month time.Time

// NewMonth returns the month starting at 00:00 on the first of month in loc.
func NewMonth(year int, month time.Month, loc *time.Location) Month {
	if loc == nil {
		loc = time.UTC
	}
	return Month(time.Date(year, month, 1, 0, 0, 0, 0, loc))
}

// MonthOf returns the Month in which t occurs in t's location.
func MonthOf(t time.Time) Month {
	year, month, _ := t.Date()
	return NewMonth(year, month, t.Location())
}

// ParseMonth parses a "YYYY-MM" string into a Month in loc.
func ParseMonth(s string, loc *time.Location) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return NewMonth(t.Year(), t.Month(), loc), nil
}

// String returns the month formatted as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", time.Time(m).Year(), time.Time(m).Month())
}

// Start is the first instant of the month.
func (m Month) Start() time.Time {
	return time.Time(m)
}

// End is the first instant of the following month.
func (m Month) End() time.Time {
	return time.Time(m).AddDate(0, 1, 0)
}

// Location returns the location the month boundaries are computed in.
func (m Month) Location() *time.Location {
	return time.Time(m).Location()
}

// IsZero reports if the month is the zero value.
func (m Month) IsZero() bool {
	return time.Time(m).IsZero()
}

// AddDate adds a specified amount of years and months.
func (m Month) AddDate(years, months int) Month {
	return Month(time.Time(m).AddDate(years, months, 0))
}

// Equal reports whether m and n represent the same month.
func (m Month) Equal(n Month) bool {
	return time.Time(m).Year() == time.Time(n).Year() && time.Time(m).Month() == time.Time(n).Month()
}

// Contains reports whether t falls in the month, comparing calendar year and
// month in the month's location.
func (m Month) Contains(t time.Time) bool {
	local := t.In(m.Location())
	return local.Year() == time.Time(m).Year() && local.Month() == time.Time(m).Month()
}
