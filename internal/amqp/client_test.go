package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed", amqp091.ErrClosed, true},
		{"wrapped closed", fmt.Errorf("consume: %w", amqp091.ErrClosed), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"deliveries closed", ErrDeliveriesClosed, true},
		{"wrapped deliveries closed", fmt.Errorf("consume: %w", ErrDeliveriesClosed), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func (f *fakeAck) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	valid := []byte(`{"source":"sqlite","count":3,"timestamp":"2025-03-15T10:00:00Z"}`)
	boom := errors.New("boom")

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		wantAck     bool
		wantRequeue bool
		wantCalled  bool
	}{
		{"success", valid, false, nil, true, false, true},
		{"handler failure requeues", valid, false, boom, false, true, true},
		{"second failure drops", valid, true, boom, false, false, true},
		{"undecodable body", []byte(`{nope`), false, nil, false, false, false},
		{"missing source", []byte(`{"count":1}`), false, nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			called := false
			handler := func(_ context.Context, msg *TransactionsChangedMessage) error {
				called = true
				if msg.Source != "sqlite" || msg.Count != 3 {
					t.Errorf("unexpected message %+v", msg)
				}
				return tt.handlerErr
			}

			handleDelivery(context.Background(), amqp091.Delivery{
				Acknowledger: ack,
				Body:         tt.body,
				Redelivered:  tt.redelivered,
			}, handler)

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected a nack")
			}
			if ack.requeued != tt.wantRequeue {
				t.Errorf("requeued = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}
}

func TestMessagesJSON(t *testing.T) {
	msg := NewTransactionsChangedMessage("memory", 2)
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	back, err := TransactionsChangedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if back.Source != "memory" || back.Count != 2 || !back.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip mismatch: %+v vs %+v", back, msg)
	}

	report := &ReportComputedMessage{Now: "2025-03-15", SeriesCount: 2, Balance: "1985"}
	data, err = report.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded ReportComputedMessage
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.Balance != "1985" || decoded.SeriesCount != 2 {
		t.Errorf("decoded = %+v, %v", decoded, err)
	}
}
