package forecast

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previsioni/internal/core"
)

func expense(id, category, amount string, date time.Time) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Type:        core.Expense,
		Category:    category,
		Description: "item " + id,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimals(t *testing.T, want []string, got []decimal.Decimal) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Truef(t, dec(want[i]).Equal(got[i]), "index %d: want %s, got %s", i, want[i], got[i])
	}
}

func TestForecastCategoriesLinearTrend(t *testing.T) {
	now := core.NewDate(2025, 3, 20)
	txs := []core.Transaction{
		expense("1", "Food", "60", core.NewDate(2025, 1, 3)),
		expense("2", "Food", "40", core.NewDate(2025, 1, 19)),
		expense("3", "Food", "150", core.NewDate(2025, 2, 10)),
		expense("4", "Food", "200", core.NewDate(2025, 3, 2)),
	}

	report := ForecastCategories(txs, now, DefaultTrendOptions())

	require.Len(t, report.Categories, 1)
	food := report.Categories[0]
	assert.Equal(t, "Food", food.Category)
	assert.True(t, food.MonthlyAverage.Equal(dec("150")))
	assert.Equal(t, 1.0, food.TrendFraction)
	assertDecimals(t, []string{"150", "300", "450"}, food.Projection)
	assertDecimals(t, []string{"150", "300", "450"}, report.Total)
	assert.Equal(t, 1.0, report.OverallTrend)
	require.Len(t, food.Buckets, 3)
	assert.Equal(t, "2025-01", food.Buckets[0].Month.String())
	assert.True(t, food.Buckets[0].Total.Equal(dec("100")))
}

func TestTrendFractionZeroFirstBucket(t *testing.T) {
	got := TrendFraction([]decimal.Decimal{decimal.Zero, dec("20"), dec("50")})
	assert.Equal(t, 0.0, got)
	assert.False(t, math.IsNaN(got))
	assert.False(t, math.IsInf(got, 0))

	assert.Equal(t, 0.0, TrendFraction(nil))
	assert.Equal(t, 0.0, TrendFraction([]decimal.Decimal{dec("80")}))
	assert.Equal(t, -0.5, TrendFraction([]decimal.Decimal{dec("100"), dec("70"), dec("50")}))
}

func TestForecastCategoriesUsesLastThreeBuckets(t *testing.T) {
	now := core.NewDate(2025, 6, 30)
	txs := []core.Transaction{
		expense("1", "Fuel", "500", core.NewDate(2025, 1, 5)),
		expense("2", "Fuel", "100", core.NewDate(2025, 4, 5)),
		expense("3", "Fuel", "300", core.NewDate(2025, 5, 5)),
		expense("4", "Fuel", "200", core.NewDate(2025, 6, 5)),
	}

	report := ForecastCategories(txs, now, DefaultTrendOptions())

	require.Len(t, report.Categories, 1)
	fuel := report.Categories[0]
	// (500 + 100 + 300 + 200) / 4 non-empty buckets
	assert.True(t, fuel.MonthlyAverage.Equal(dec("275")))
	// last three buckets: Apr 100 -> Jun 200
	assert.Equal(t, 1.0, fuel.TrendFraction)
}

func TestForecastCategoriesWindowAndTypes(t *testing.T) {
	now := core.NewDate(2025, 7, 15)
	txs := []core.Transaction{
		expense("old", "Travel", "999", core.NewDate(2025, 1, 14)),
		expense("edge", "Travel", "100", core.NewDate(2025, 1, 15)),
		expense("future", "Travel", "999", core.NewDate(2025, 7, 16)),
		{ID: "rev", Amount: dec("3000"), Date: core.NewDate(2025, 7, 1), Type: core.Revenue, Category: "Work"},
		expense("blank", "", "20", core.NewDate(2025, 7, 1)),
	}

	report := ForecastCategories(txs, now, DefaultTrendOptions())

	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Travel", report.Categories[0].Category)
	assert.True(t, report.Categories[0].MonthlyAverage.Equal(dec("100")))
	assert.Equal(t, core.DefaultCategory, report.Categories[1].Category)
	assert.True(t, report.Categories[1].MonthlyAverage.Equal(dec("20")))
}

func TestProjectionCanGoNegative(t *testing.T) {
	now := core.NewDate(2025, 3, 31)
	txs := []core.Transaction{
		expense("1", "Hobby", "100", core.NewDate(2025, 1, 10)),
		expense("2", "Hobby", "40", core.NewDate(2025, 2, 10)),
		expense("3", "Hobby", "10", core.NewDate(2025, 3, 10)),
	}
	opts := DefaultTrendOptions()
	opts.Horizon = 4

	report := ForecastCategories(txs, now, opts)

	hobby := report.Categories[0]
	// average 50, trend (10-100)/100 = -0.9
	assert.InDelta(t, -0.9, hobby.TrendFraction, 1e-12)
	assertDecimals(t, []string{"50", "5", "-40", "-85"}, hobby.Projection)

	opts.ClampNegative = true
	clamped := ForecastCategories(txs, now, opts).Categories[0]
	assertDecimals(t, []string{"50", "5", "0", "0"}, clamped.Projection)
}

func TestOverallTrendIsWeightedByAverage(t *testing.T) {
	now := core.NewDate(2025, 2, 28)
	txs := []core.Transaction{
		// Rent: average 1000, trend 0
		expense("r1", "Rent", "1000", core.NewDate(2025, 1, 1)),
		expense("r2", "Rent", "1000", core.NewDate(2025, 2, 1)),
		// Food: 200 -> 300, average 250, trend 0.5
		expense("f1", "Food", "200", core.NewDate(2025, 1, 5)),
		expense("f2", "Food", "300", core.NewDate(2025, 2, 5)),
	}

	report := ForecastCategories(txs, now, DefaultTrendOptions())

	require.Len(t, report.Categories, 2)
	assert.Equal(t, "Rent", report.Categories[0].Category)
	assert.InDelta(t, 250*0.5/1250, report.OverallTrend, 1e-12)
	assertDecimals(t, []string{"1250", "1375", "1500"}, report.Total)
}

func TestForecastCategoriesEmpty(t *testing.T) {
	report := ForecastCategories(nil, core.NewDate(2025, 1, 1), DefaultTrendOptions())

	assert.Empty(t, report.Categories)
	assert.Equal(t, 0.0, report.OverallTrend)
	assertDecimals(t, []string{"0", "0", "0"}, report.Total)
}

func TestTrendOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultTrendOptions().Validate())

	bad := DefaultTrendOptions()
	bad.Horizon = 0
	assert.Error(t, bad.Validate())

	bad = DefaultTrendOptions()
	bad.TrendBuckets = 1
	assert.Error(t, bad.Validate())

	bad = DefaultTrendOptions()
	bad.WindowMonths = 0
	assert.Error(t, bad.Validate())
}

func TestTrendReportJSONKeepsAmountsExact(t *testing.T) {
	now := core.NewDate(2025, 3, 15)
	txs := []core.Transaction{
		expense("1", "Food", "100", core.NewDate(2025, 1, 10)),
		expense("2", "Food", "200", core.NewDate(2025, 2, 10)),
	}
	opts := DefaultTrendOptions()
	opts.Horizon = 2

	b, err := json.Marshal(ForecastCategories(txs, now, opts))
	require.NoError(t, err)

	// amounts are decimal strings, fractions are numbers
	assert.JSONEq(t, `{
		"horizon": 2,
		"categories": [{
			"category": "Food",
			"monthlyAverage": "150",
			"trendFraction": 1,
			"buckets": [
				{"month": "2025-01", "total": "100"},
				{"month": "2025-02", "total": "200"}
			],
			"projection": ["150", "300"]
		}],
		"total": ["150", "300"],
		"overallTrend": 1
	}`, string(b))
}
