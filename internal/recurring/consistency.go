package recurring

import (
	"github.com/shopspring/decimal"

	"previsioni/internal/core"
)

// MeanAmount returns the arithmetic mean of the transaction amounts.
func MeanAmount(txs []core.Transaction) decimal.Decimal {
	if len(txs) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(txs))))
}

// IsConsistent reports whether every member amount lies within tolerance of
// the group mean. A single outlier rejects the whole group; there is no
// attempt to split it.
func IsConsistent(txs []core.Transaction, tolerance float64) bool {
	mean := MeanAmount(txs)
	if !mean.IsPositive() {
		return false
	}
	limit := mean.Mul(decimal.NewFromFloat(tolerance))
	for _, tx := range txs {
		if tx.Amount.Sub(mean).Abs().GreaterThan(limit) {
			return false
		}
	}
	return true
}

// FilterConsistent keeps the groups that pass IsConsistent.
func FilterConsistent(groups []Group, tolerance float64) []Group {
	kept := make([]Group, 0, len(groups))
	for _, g := range groups {
		if IsConsistent(g.Transactions, tolerance) {
			kept = append(kept, g)
		}
	}
	return kept
}
