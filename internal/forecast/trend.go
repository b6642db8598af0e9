package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"
)

// TrendOptions configures the category trend forecaster.
type TrendOptions struct {
	// Horizon is the number of projected months; offset 0 is the first.
	Horizon int
	// WindowMonths is the trailing history window measured back from now.
	WindowMonths int
	// TrendBuckets is how many of the most recent monthly buckets feed the
	// trend estimate.
	TrendBuckets int
	// ClampNegative floors projections at zero. Off by default: a strong
	// negative trend over a long horizon legitimately projects below zero.
	ClampNegative bool
}

func DefaultTrendOptions() TrendOptions {
	return TrendOptions{
		Horizon:      3,
		WindowMonths: 6,
		TrendBuckets: 3,
	}
}

func (o TrendOptions) Validate() error {
	if o.Horizon < 1 || o.Horizon > 60 {
		return fmt.Errorf("horizon %d: must be between 1 and 60", o.Horizon)
	}
	if o.WindowMonths < 1 {
		return fmt.Errorf("window %d months: must be at least 1", o.WindowMonths)
	}
	if o.TrendBuckets < 2 {
		return fmt.Errorf("trend buckets %d: must be at least 2", o.TrendBuckets)
	}
	return nil
}

// MonthTotal is the expense total of one category in one month.
type MonthTotal struct {
	Month core.Month      `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// CategoryForecast is the trend and projection of one expense category.
type CategoryForecast struct {
	Category       string            `json:"category"`
	MonthlyAverage decimal.Decimal   `json:"monthlyAverage"`
	TrendFraction  float64           `json:"trendFraction"`
	Buckets        []MonthTotal      `json:"buckets"`
	Projection     []decimal.Decimal `json:"projection"`
}

// TrendReport is the full output of the forecaster.
type TrendReport struct {
	Horizon      int                `json:"horizon"`
	Categories   []CategoryForecast `json:"categories"`
	Total        []decimal.Decimal  `json:"total"`
	OverallTrend float64            `json:"overallTrend"`
}

// TrendFraction returns the signed fractional change between the first and
// last of the given chronological totals. A zero first total, fewer than two
// totals, or any non-finite result yields 0.
func TrendFraction(totals []decimal.Decimal) float64 {
	if len(totals) < 2 {
		return 0
	}
	first, last := totals[0], totals[len(totals)-1]
	if first.IsZero() {
		return 0
	}
	f := last.Sub(first).Div(first).InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Project returns average * (1 + trend * i) for i in [0, horizon). The
// projection is linear, not compounding.
func Project(average decimal.Decimal, trend float64, horizon int, clamp bool) []decimal.Decimal {
	out := make([]decimal.Decimal, horizon)
	slope := decimal.NewFromFloat(trend)
	for i := range out {
		factor := decimal.NewFromInt(1).Add(slope.Mul(decimal.NewFromInt(int64(i))))
		v := average.Mul(factor).Round(2)
		if clamp && v.IsNegative() {
			v = decimal.Zero
		}
		out[i] = v
	}
	return out
}

// ForecastCategories buckets expense transactions of the trailing window by
// category and calendar month, then derives a monthly average, a trend and a
// projection per category.
func ForecastCategories(txs []core.Transaction, now time.Time, opts TrendOptions) TrendReport {
	today := core.DateOf(now)
	from := core.AddMonthsClamped(today, -opts.WindowMonths)

	buckets := make(map[string]map[core.Month]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Date.Before(from) || tx.Date.After(today) {
			continue
		}
		cat := core.NormalizeCategory(tx.Category)
		if buckets[cat] == nil {
			buckets[cat] = make(map[core.Month]decimal.Decimal)
		}
		m := core.MonthOf(tx.Date)
		buckets[cat][m] = buckets[cat][m].Add(tx.Amount)
	}

	report := TrendReport{
		Horizon:    opts.Horizon,
		Categories: make([]CategoryForecast, 0, len(buckets)),
		Total:      make([]decimal.Decimal, opts.Horizon),
	}
	for i := range report.Total {
		report.Total[i] = decimal.Zero
	}

	for cat, byMonth := range buckets {
		report.Categories = append(report.Categories, forecastCategory(cat, byMonth, opts))
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i], report.Categories[j]
		if !a.MonthlyAverage.Equal(b.MonthlyAverage) {
			return a.MonthlyAverage.GreaterThan(b.MonthlyAverage)
		}
		return a.Category < b.Category
	})

	weighted, weights := 0.0, 0.0
	for _, c := range report.Categories {
		for i, v := range c.Projection {
			report.Total[i] = report.Total[i].Add(v)
		}
		w := c.MonthlyAverage.InexactFloat64()
		weighted += w * c.TrendFraction
		weights += w
	}
	if weights > 0 {
		report.OverallTrend = weighted / weights
	}
	return report
}

func forecastCategory(category string, byMonth map[core.Month]decimal.Decimal, opts TrendOptions) CategoryForecast {
	months := make([]core.Month, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	series := make([]MonthTotal, len(months))
	totals := make([]decimal.Decimal, len(months))
	sum := decimal.Zero
	for i, m := range months {
		series[i] = MonthTotal{Month: m, Total: byMonth[m]}
		totals[i] = byMonth[m]
		sum = sum.Add(byMonth[m])
	}

	count := int64(len(months))
	if count < 1 {
		count = 1
	}
	average := sum.Div(decimal.NewFromInt(count)).Round(2)

	recent := totals
	if len(recent) > opts.TrendBuckets {
		recent = recent[len(recent)-opts.TrendBuckets:]
	}
	trend := TrendFraction(recent)

	return CategoryForecast{
		Category:       category,
		MonthlyAverage: average,
		TrendFraction:  trend,
		Buckets:        series,
		Projection:     Project(average, trend, opts.Horizon, opts.ClampNegative),
	}
}
