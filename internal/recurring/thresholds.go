// Package recurring detects recurring transaction series in a flat list of
// transactions, classifies their periodicity and predicts the next
// occurrence.
//
// The pipeline is SeriesBuilder -> ConsistencyFilter -> FrequencyClassifier
// -> NextOccurrencePredictor. Every step is a pure function of its inputs.
package recurring

import (
	"errors"
	"fmt"
)

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
	Irregular Frequency = "irregular"
)

type Frequency string

// Reliability is the fixed heuristic confidence assigned per frequency.
var Reliability = map[Frequency]float64{
	Monthly:   0.9,
	Weekly:    0.85,
	Quarterly: 0.8,
	Annual:    0.9,
	Irregular: 0.6,
}

// Thresholds holds the heuristic knobs of the detector.
type Thresholds struct {
	// AmountTolerance is the maximum relative deviation of any member
	// amount from the group mean.
	AmountTolerance float64
	// MonthlyDaySlack is the allowed day-of-month distance from the first
	// occurrence for a monthly series.
	MonthlyDaySlack int
	// AnnualDaySlack is the allowed day-of-month distance, within the same
	// month, for an annual series.
	AnnualDaySlack int
	// QuarterlyMinOccurrences is the minimum group size for which the
	// quarterly matcher is evaluated at all. Monthly and weekly need only 2.
	QuarterlyMinOccurrences int
	// Priority is the evaluation order of the matchers; the first match
	// wins and Irregular is the fallback.
	Priority []Frequency
}

// DefaultThresholds returns the stock heuristics.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AmountTolerance:         0.10,
		MonthlyDaySlack:         3,
		AnnualDaySlack:          5,
		QuarterlyMinOccurrences: 3,
		Priority:                []Frequency{Monthly, Weekly, Quarterly, Annual},
	}
}

// Validate reports the first invalid threshold.
func (t Thresholds) Validate() error {
	if t.AmountTolerance < 0 {
		return fmt.Errorf("amount tolerance %v: must not be negative", t.AmountTolerance)
	}
	if t.MonthlyDaySlack < 0 || t.AnnualDaySlack < 0 {
		return errors.New("day slack must not be negative")
	}
	if t.QuarterlyMinOccurrences < 2 {
		return fmt.Errorf("quarterly minimum occurrences %d: must be at least 2", t.QuarterlyMinOccurrences)
	}
	seen := make(map[Frequency]bool, len(t.Priority))
	for _, f := range t.Priority {
		if f == Irregular {
			return errors.New("irregular is the fallback and cannot appear in the priority list")
		}
		if _, ok := matchers[f]; !ok {
			return fmt.Errorf("no matcher registered for frequency %q", f)
		}
		if seen[f] {
			return fmt.Errorf("frequency %q listed twice in priority", f)
		}
		seen[f] = true
	}
	return nil
}
