package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"previsioni/internal/core"
)

func TestMemoryStoreUpsertAndList(t *testing.T) {
	s := New(
		core.Record{ID: "a", Description: "Netflix", Amount: "15"},
		core.Record{ID: "b", Description: "Rent", Amount: "900"},
	)

	n, err := s.UpsertRecords(context.Background(), []core.Record{
		{ID: "a", Description: "Netflix", Amount: "17.99"},
		{ID: "  ", Description: "no id"},
		{ID: "c", Description: "Gym", Amount: "40"},
	})
	if err != nil || n != 2 {
		t.Fatalf("UpsertRecords = %d, %v; want 2, nil", n, err)
	}

	recs, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].ID != "a" || recs[0].Amount != "17.99" {
		t.Errorf("upsert should replace in place, got %+v", recs[0])
	}
	if recs[2].ID != "c" {
		t.Errorf("new record should be appended, got %+v", recs[2])
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should yield an empty store: %v", err)
	}
	if recs, _ := s.Records(context.Background()); len(recs) != 0 {
		t.Fatalf("expected empty store, got %d records", len(recs))
	}

	path := filepath.Join(dir, "records.json")
	content := `[
		{"id": "1", "amount": 15, "date": "2025-01-05", "type": "expense", "category": "Subscription", "description": "Netflix"},
		{"id": "2", "amount": "15.00", "date": "2025-02-04", "type": "expense", "description": "Netflix"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	recs, _ := s.Records(context.Background())
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Amount != "15" || recs[1].Amount != "15.00" {
		t.Errorf("amounts = %q, %q", recs[0].Amount, recs[1].Amount)
	}
	if recs[1].Category != "" {
		t.Errorf("absent category should stay empty in the raw record, got %q", recs[1].Category)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFile(bad); err == nil {
		t.Error("expected a decode error")
	}
}

func TestMemoryStoreReplaceRecords(t *testing.T) {
	s := New(
		core.Record{ID: "a", Amount: "15"},
		core.Record{ID: "b", Amount: "900"},
	)

	stored, removed, err := s.ReplaceRecords(context.Background(), []core.Record{
		{ID: "c", Amount: "3"},
		{ID: "a", Amount: "16"},
		{ID: " ", Amount: "1"},
	})
	if err != nil {
		t.Fatalf("ReplaceRecords: %v", err)
	}
	if stored != 2 || removed != 1 {
		t.Fatalf("ReplaceRecords = %d stored, %d removed; want 2, 1", stored, removed)
	}

	recs, _ := s.Records(context.Background())
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "a" || recs[1].Amount != "16" {
		t.Errorf("unexpected records after replace: %+v", recs)
	}
}
