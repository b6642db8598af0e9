package recurring

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"
)

// Series is a detected recurring series. It is recomputed on every run and
// carries no identity across runs.
type Series struct {
	Key              SeriesKey            `json:"-"`
	Description      string               `json:"description"`
	Category         string               `json:"category"`
	Type             core.TransactionType `json:"type"`
	AverageAmount    decimal.Decimal      `json:"averageAmount"`
	Frequency        Frequency            `json:"frequency"`
	Reliability      float64              `json:"reliability"`
	LastDate         time.Time            `json:"lastDate"`
	NextExpectedDate time.Time            `json:"nextExpectedDate"`
	OccurrenceCount  int                  `json:"occurrenceCount"`
	Transactions     []core.Transaction   `json:"-"`
}

// MarshalJSON renders dates as YYYY-MM-DD.
func (s Series) MarshalJSON() ([]byte, error) {
	type alias Series
	return json.Marshal(struct {
		alias
		LastDate         string `json:"lastDate"`
		NextExpectedDate string `json:"nextExpectedDate"`
	}{
		alias:            alias(s),
		LastDate:         s.LastDate.Format(time.DateOnly),
		NextExpectedDate: s.NextExpectedDate.Format(time.DateOnly),
	})
}

// Detector runs the series pipeline with a fixed set of thresholds.
type Detector struct {
	th Thresholds
}

// NewDetector returns a Detector. Invalid thresholds are reported here so
// that Detect itself cannot fail.
func NewDetector(th Thresholds) (*Detector, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Detector{th: th}, nil
}

// Thresholds returns the detector configuration.
func (d *Detector) Thresholds() Thresholds {
	return d.th
}

// Detect returns the recurring series found in txs, sorted by reliability
// descending. Ties are broken by description, category and type so that
// identical input always yields identical output.
func (d *Detector) Detect(txs []core.Transaction) []Series {
	groups := FilterConsistent(BuildGroups(txs), d.th.AmountTolerance)

	series := make([]Series, 0, len(groups))
	for _, g := range groups {
		series = append(series, d.buildSeries(g))
	}

	sort.SliceStable(series, func(i, j int) bool {
		a, b := series[i], series[j]
		if a.Reliability != b.Reliability {
			return a.Reliability > b.Reliability
		}
		return a.Key.less(b.Key)
	})
	return series
}

func (d *Detector) buildSeries(g Group) Series {
	dates := make([]time.Time, len(g.Transactions))
	for i, tx := range g.Transactions {
		dates[i] = tx.Date
	}
	freq, reliability := Classify(dates, d.th)
	last := g.Transactions[len(g.Transactions)-1]

	return Series{
		Key:              g.Key,
		Description:      last.Description,
		Category:         g.Key.Category,
		Type:             g.Key.Type,
		AverageAmount:    MeanAmount(g.Transactions).Round(2),
		Frequency:        freq,
		Reliability:      reliability,
		LastDate:         last.Date,
		NextExpectedDate: NextOccurrence(last.Date, freq, dates),
		OccurrenceCount:  len(g.Transactions),
		Transactions:     g.Transactions,
	}
}
