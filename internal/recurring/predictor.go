package recurring

import (
	"math"
	"time"

	"previsioni/internal/core"
)

// NextOccurrence predicts the date following last for a series with the
// given frequency. dates is the full ascending date sequence of the series
// and is only consulted for Irregular, which advances by the rounded mean
// gap between consecutive occurrences.
func NextOccurrence(last time.Time, f Frequency, dates []time.Time) time.Time {
	switch f {
	case Weekly:
		return last.AddDate(0, 0, 7)
	case Monthly:
		return core.AddMonthsClamped(last, 1)
	case Quarterly:
		return core.AddMonthsClamped(last, 3)
	case Annual:
		return core.AddMonthsClamped(last, 12)
	default:
		return last.AddDate(0, 0, MeanGapDays(dates))
	}
}

// MeanGapDays returns the mean distance in days between consecutive dates,
// rounded half away from zero. Fewer than two dates yield 0.
func MeanGapDays(dates []time.Time) int {
	if len(dates) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(dates); i++ {
		total += dates[i].Sub(dates[i-1]).Hours() / 24
	}
	return int(math.Round(total / float64(len(dates)-1)))
}
