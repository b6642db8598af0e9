package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is a transaction as supplied by a source, before validation.
// Date is kept as text so that a single malformed value can be skipped
// without failing the batch.
type Record struct {
	ID          string    `json:"id"`
	Amount      RawAmount `json:"amount"`
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description"`
}

// RawAmount accepts both JSON numbers and numeric strings.
type RawAmount string

func (a *RawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
		return nil
	}
	*a = RawAmount(b)
	return nil
}

func (a RawAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// Warning reports a record that was skipped.
type Warning struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("record %q: %s: %s", w.RecordID, w.Field, w.Reason)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate parses an ISO-8601 calendar date or timestamp and returns the
// calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseRecord validates a single record.
func ParseRecord(r Record) (Transaction, *Warning) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Transaction{}, &Warning{Field: "id", Reason: ErrEmptyID.Error()}
	}
	date, err := ParseDate(r.Date)
	if err != nil {
		return Transaction{}, &Warning{RecordID: id, Field: "date", Reason: err.Error()}
	}
	amount, err := ParseAmount(string(r.Amount))
	if err != nil {
		return Transaction{}, &Warning{RecordID: id, Field: "amount", Reason: fmt.Sprintf("%v: %q", err, r.Amount)}
	}
	typ, err := ParseTransactionType(r.Type)
	if err != nil {
		return Transaction{}, &Warning{RecordID: id, Field: "type", Reason: fmt.Sprintf("%v: %q", err, r.Type)}
	}
	return Transaction{
		ID:          id,
		Amount:      amount,
		Date:        date,
		Type:        typ,
		Category:    NormalizeCategory(r.Category),
		Description: strings.TrimSpace(r.Description),
	}, nil
}

// ParseRecords converts records into transactions, skipping invalid ones.
// Each skipped record produces exactly one warning; the order of the
// returned transactions follows the input.
func ParseRecords(records []Record) ([]Transaction, []Warning) {
	txs := make([]Transaction, 0, len(records))
	var warnings []Warning
	for _, r := range records {
		tx, w := ParseRecord(r)
		if w != nil {
			warnings = append(warnings, *w)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, warnings
}
