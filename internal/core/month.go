package core

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar month in a specific year.
type Month time.Time

// NewMonth returns the Month starting at the first day of month in year.
func NewMonth(year int, month time.Month) Month {
	return Month(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf returns the Month in which t occurs.
func MonthOf(t time.Time) Month {
	year, month, _ := t.Date()
	return NewMonth(year, month)
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, err
	}
	return MonthOf(t), nil
}

// String returns the month formatted as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", time.Time(m).Year(), time.Time(m).Month())
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Start returns the first instant of the month.
func (m Month) Start() time.Time {
	return time.Time(m)
}

// End returns the first instant of the following month.
func (m Month) End() time.Time {
	return time.Time(m).AddDate(0, 1, 0)
}

// AddMonths adds n calendar months.
func (m Month) AddMonths(n int) Month {
	return Month(time.Time(m).AddDate(0, n, 0))
}

// Contains reports whether t falls in the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == time.Time(m).Year() && t.Month() == time.Time(m).Month()
}

func (m Month) Before(n Month) bool {
	return time.Time(m).Before(time.Time(n))
}

func (m Month) Equal(n Month) bool {
	return time.Time(m).Equal(time.Time(n))
}

func (m Month) IsZero() bool {
	return time.Time(m).IsZero()
}

// DaysIn returns the number of days in the month.
func (m Month) DaysIn() int {
	return m.End().AddDate(0, 0, -1).Day()
}

// AddMonthsClamped adds n calendar months to t, clamping the day to the last
// day of the target month instead of overflowing into the next one.
func AddMonthsClamped(t time.Time, n int) time.Time {
	target := MonthOf(t).AddMonths(n)
	day := t.Day()
	if last := target.DaysIn(); day > last {
		day = last
	}
	y, mo, _ := target.Start().Date()
	return time.Date(y, mo, day, 0, 0, 0, 0, time.UTC)
}
