// Package forecast projects short-horizon income and expense figures, either
// from detected recurring series or from raw per-category history.
package forecast

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"
	"previsioni/internal/recurring"
)

// SubscriptionMarker is matched case-insensitively against series categories.
const SubscriptionMarker = "subscription"

// SeriesRef identifies the series that contributed to a summary.
type SeriesRef struct {
	Description      string               `json:"description"`
	Category         string               `json:"category"`
	Type             core.TransactionType `json:"type"`
	AverageAmount    decimal.Decimal      `json:"averageAmount"`
	NextExpectedDate time.Time            `json:"-"`
}

func (r SeriesRef) MarshalJSON() ([]byte, error) {
	type alias SeriesRef
	return json.Marshal(struct {
		alias
		NextExpectedDate string `json:"nextExpectedDate"`
	}{alias(r), r.NextExpectedDate.Format(time.DateOnly)})
}

// MonthlySummary is the series-based projection for one calendar month.
type MonthlySummary struct {
	Month             core.Month      `json:"month"`
	ExpectedExpenses  decimal.Decimal `json:"expectedExpenses"`
	ExpectedRevenue   decimal.Decimal `json:"expectedRevenue"`
	Balance           decimal.Decimal `json:"balance"`
	SubscriptionTotal decimal.Decimal `json:"subscriptionTotal"`
	Contributions     []SeriesRef     `json:"contributions"`
}

// DefaultWindow is the calendar month following now.
func DefaultWindow(now time.Time) core.Month {
	return core.MonthOf(now).AddMonths(1)
}

// IsSubscription reports whether a category names a subscription.
func IsSubscription(category string) bool {
	return strings.Contains(strings.ToLower(category), SubscriptionMarker)
}

// Summarize projects the month window from the series whose next expected
// date falls inside it.
func Summarize(series []recurring.Series, window core.Month) MonthlySummary {
	sum := newSummary(window)
	for _, s := range series {
		if window.Contains(s.NextExpectedDate) {
			sum.add(s)
		}
	}
	return sum
}

// ProjectMonths returns n consecutive monthly summaries starting at first.
// A series is attributed only to the window containing its next expected
// date, so no series is counted in more than one summary.
func ProjectMonths(series []recurring.Series, first core.Month, n int) []MonthlySummary {
	if n <= 0 {
		return nil
	}
	out := make([]MonthlySummary, n)
	for i := range out {
		out[i] = newSummary(first.AddMonths(i))
	}
	for _, s := range series {
		for i := range out {
			if out[i].Month.Contains(s.NextExpectedDate) {
				out[i].add(s)
				break
			}
		}
	}
	return out
}

func newSummary(m core.Month) MonthlySummary {
	return MonthlySummary{
		Month:             m,
		ExpectedExpenses:  decimal.Zero,
		ExpectedRevenue:   decimal.Zero,
		Balance:           decimal.Zero,
		SubscriptionTotal: decimal.Zero,
		Contributions:     []SeriesRef{},
	}
}

func (m *MonthlySummary) add(s recurring.Series) {
	switch s.Type {
	case core.Expense:
		m.ExpectedExpenses = m.ExpectedExpenses.Add(s.AverageAmount)
		if IsSubscription(s.Category) {
			m.SubscriptionTotal = m.SubscriptionTotal.Add(s.AverageAmount)
		}
	case core.Revenue:
		m.ExpectedRevenue = m.ExpectedRevenue.Add(s.AverageAmount)
	default:
		return
	}
	m.Balance = m.ExpectedRevenue.Sub(m.ExpectedExpenses)
	m.Contributions = append(m.Contributions, SeriesRef{
		Description:      s.Description,
		Category:         s.Category,
		Type:             s.Type,
		AverageAmount:    s.AverageAmount,
		NextExpectedDate: s.NextExpectedDate,
	})
}
