package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense TransactionType = "expense"
	Revenue TransactionType = "revenue"
)

// DefaultCategory is used for transactions without a category.
const DefaultCategory = "Other"

type (
	TransactionType string

	// Transaction is a validated, immutable input to the engine.
	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Date        time.Time // calendar date, UTC midnight
		Type        TransactionType
		Category    string
		Description string
	}
)

var (
	ErrEmptyID       = errors.New("empty id")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidType   = errors.New("invalid transaction type")
)

// ParseTransactionType accepts "expense" and "revenue" in any case.
// "income" is accepted as an alias of revenue.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Expense):
		return Expense, nil
	case string(Revenue), "income":
		return Revenue, nil
	default:
		return "", ErrInvalidType
	}
}

// NormalizeCategory trims the category and falls back to DefaultCategory.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategory
	}
	return c
}

// NewDate returns the UTC midnight of the given calendar day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar date in t's own location, expressed in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

