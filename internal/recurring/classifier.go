package recurring

import (
	"time"
)

// Matcher is the strategy interface for one periodicity. Each implementation
// decides whether a date sequence, sorted ascending, follows its pattern.
type Matcher interface {
	Matches(dates []time.Time, th Thresholds) bool
}

// MonthlyMatcher matches when every date falls within MonthlyDaySlack days
// of the first date's day-of-month.
type MonthlyMatcher struct{}

func (MonthlyMatcher) Matches(dates []time.Time, th Thresholds) bool {
	d0 := dates[0].Day()
	for _, d := range dates[1:] {
		if absInt(d.Day()-d0) > th.MonthlyDaySlack {
			return false
		}
	}
	return true
}

// WeeklyMatcher matches when every date shares the first date's weekday.
type WeeklyMatcher struct{}

func (WeeklyMatcher) Matches(dates []time.Time, _ Thresholds) bool {
	w0 := dates[0].Weekday()
	for _, d := range dates[1:] {
		if d.Weekday() != w0 {
			return false
		}
	}
	return true
}

// QuarterlyMatcher matches when every month offset from the first date is a
// multiple of three. It is not evaluated for groups smaller than
// QuarterlyMinOccurrences.
type QuarterlyMatcher struct{}

func (QuarterlyMatcher) Matches(dates []time.Time, th Thresholds) bool {
	if len(dates) < th.QuarterlyMinOccurrences {
		return false
	}
	m0 := int(dates[0].Month())
	for _, d := range dates[1:] {
		offset := ((int(d.Month())-m0)%12 + 12) % 12
		if offset%3 != 0 {
			return false
		}
	}
	return true
}

// AnnualMatcher matches when every date shares the first date's month and
// lies within AnnualDaySlack days of its day-of-month.
type AnnualMatcher struct{}

func (AnnualMatcher) Matches(dates []time.Time, th Thresholds) bool {
	m0, d0 := dates[0].Month(), dates[0].Day()
	for _, d := range dates[1:] {
		if d.Month() != m0 || absInt(d.Day()-d0) > th.AnnualDaySlack {
			return false
		}
	}
	return true
}

// matchers maps frequencies to their strategies.
var matchers = map[Frequency]Matcher{
	Monthly:   MonthlyMatcher{},
	Weekly:    WeeklyMatcher{},
	Quarterly: QuarterlyMatcher{},
	Annual:    AnnualMatcher{},
}

// RegisterMatcher registers a strategy for a frequency. The frequency takes
// part in classification only once it is listed in Thresholds.Priority.
// Not safe for use concurrently with Classify; register at init time.
func RegisterMatcher(f Frequency, m Matcher) {
	matchers[f] = m
}

// Classify returns the first frequency in th.Priority whose matcher accepts
// dates, or Irregular. dates must be sorted ascending and non-empty.
func Classify(dates []time.Time, th Thresholds) (Frequency, float64) {
	if len(dates) == 0 {
		return Irregular, Reliability[Irregular]
	}
	for _, f := range th.Priority {
		m, ok := matchers[f]
		if !ok {
			continue
		}
		if m.Matches(dates, th) {
			return f, reliabilityOf(f)
		}
	}
	return Irregular, Reliability[Irregular]
}

func reliabilityOf(f Frequency) float64 {
	if r, ok := Reliability[f]; ok {
		return r
	}
	return Reliability[Irregular]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
