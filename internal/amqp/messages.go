package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Routing keys on the direct exchange.
const (
	RoutingTransactionsChanged = "transactions.changed"
	RoutingReportComputed      = "report.computed"
)

// TransactionsChangedMessage announces that a source's records changed. It
// carries no records; consumers reload from the source.
type TransactionsChangedMessage struct {
	Source    string    `json:"source"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionsChangedMessage(source string, count int) *TransactionsChangedMessage {
	return &TransactionsChangedMessage{
		Source:    source,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionsChangedMessageFromJSON(data []byte) (*TransactionsChangedMessage, error) {
	var msg TransactionsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" {
		return nil, errors.New("missing source")
	}
	return &msg, nil
}

// ReportComputedMessage summarizes a freshly computed report. Amounts are
// decimal strings.
type ReportComputedMessage struct {
	Now              string    `json:"now"`
	Fingerprint      string    `json:"fingerprint"`
	SeriesCount      int       `json:"series_count"`
	Month            string    `json:"month"`
	ExpectedExpenses string    `json:"expected_expenses"`
	ExpectedRevenue  string    `json:"expected_revenue"`
	Balance          string    `json:"balance"`
	Categories       int       `json:"categories"`
	Warnings         int       `json:"warnings"`
	Timestamp        time.Time `json:"timestamp"`
}

func (m *ReportComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
