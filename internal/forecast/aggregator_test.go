package forecast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previsioni/internal/core"
	"previsioni/internal/recurring"
)

func series(desc, category string, typ core.TransactionType, amount string, next time.Time) recurring.Series {
	return recurring.Series{
		Description:      desc,
		Category:         category,
		Type:             typ,
		AverageAmount:    dec(amount),
		Frequency:        recurring.Monthly,
		Reliability:      0.9,
		NextExpectedDate: next,
	}
}

func TestDefaultWindowIsNextMonth(t *testing.T) {
	assert.Equal(t, "2025-04", DefaultWindow(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "2026-01", DefaultWindow(core.NewDate(2025, 12, 1)).String())
}

func TestSummarize(t *testing.T) {
	all := []recurring.Series{
		series("Netflix", "Subscription", core.Expense, "15", core.NewDate(2025, 4, 6)),
		series("Spotify", "Music subscriptions", core.Expense, "10.99", core.NewDate(2025, 4, 30)),
		series("Rent", "Housing", core.Expense, "1000", core.NewDate(2025, 4, 1)),
		series("Salary", "Work", core.Revenue, "2500", core.NewDate(2025, 4, 27)),
		// outside the window
		series("Gym", "Health", core.Expense, "40", core.NewDate(2025, 5, 1)),
		series("Bonus", "Subscription", core.Revenue, "99", core.NewDate(2025, 3, 31)),
	}

	sum := Summarize(all, DefaultWindow(core.NewDate(2025, 3, 15)))

	assert.Equal(t, "2025-04", sum.Month.String())
	assert.Equal(t, "1025.99", sum.ExpectedExpenses.String())
	assert.Equal(t, "2500", sum.ExpectedRevenue.String())
	assert.Equal(t, "1474.01", sum.Balance.String())
	assert.Equal(t, "25.99", sum.SubscriptionTotal.String())
	require.Len(t, sum.Contributions, 4)
	assert.Equal(t, "Netflix", sum.Contributions[0].Description)
}

func TestSummarizeSubscriptionRevenueIsNotASubscriptionCost(t *testing.T) {
	all := []recurring.Series{
		series("Resold seat", "Subscription", core.Revenue, "5", core.NewDate(2025, 4, 2)),
	}

	sum := Summarize(all, core.NewMonth(2025, 4))

	assert.True(t, sum.SubscriptionTotal.IsZero())
	assert.Equal(t, "5", sum.ExpectedRevenue.String())
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, core.NewMonth(2025, 4))

	assert.True(t, sum.ExpectedExpenses.IsZero())
	assert.True(t, sum.ExpectedRevenue.IsZero())
	assert.True(t, sum.Balance.IsZero())
	assert.True(t, sum.SubscriptionTotal.IsZero())
	assert.NotNil(t, sum.Contributions)
	assert.Empty(t, sum.Contributions)
}

func TestProjectMonthsCountsEachSeriesOnce(t *testing.T) {
	all := []recurring.Series{
		series("Rent", "Housing", core.Expense, "1000", core.NewDate(2025, 4, 1)),
		series("Insurance", "Car", core.Expense, "300", core.NewDate(2025, 6, 15)),
		series("Salary", "Work", core.Revenue, "2500", core.NewDate(2025, 4, 27)),
		series("Later", "Other", core.Expense, "1", core.NewDate(2025, 9, 1)),
	}

	months := ProjectMonths(all, core.NewMonth(2025, 4), 3)

	require.Len(t, months, 3)
	assert.Equal(t, "2025-04", months[0].Month.String())
	assert.Equal(t, "1500", months[0].Balance.String())
	assert.True(t, months[1].ExpectedExpenses.IsZero())
	assert.Equal(t, "300", months[2].ExpectedExpenses.String())

	total := 0
	for _, m := range months {
		total += len(m.Contributions)
	}
	assert.Equal(t, 3, total)

	assert.Nil(t, ProjectMonths(all, core.NewMonth(2025, 4), 0))
}

func TestMonthlySummaryJSON(t *testing.T) {
	sum := Summarize([]recurring.Series{
		series("Netflix", "Subscription", core.Expense, "15", core.NewDate(2025, 4, 6)),
	}, core.NewMonth(2025, 4))

	b, err := json.Marshal(sum)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"month": "2025-04",
		"expectedExpenses": "15",
		"expectedRevenue": "0",
		"balance": "-15",
		"subscriptionTotal": "15",
		"contributions": [{
			"description": "Netflix",
			"category": "Subscription",
			"type": "expense",
			"averageAmount": "15",
			"nextExpectedDate": "2025-04-06"
		}]
	}`, string(b))
}
