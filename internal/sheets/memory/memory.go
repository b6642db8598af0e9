// Package memory is an in-process transaction source, optionally seeded from
// a JSON file of records.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"previsioni/internal/core"
	"previsioni/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	order []string
	items map[string]core.Record
}

func New(records ...core.Record) *Store {
	s := &Store{items: make(map[string]core.Record)}
	_, _ = s.UpsertRecords(context.Background(), records)
	return s
}

// NewFromFile seeds the store from a JSON array of records. A missing path
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return New(records...), nil
}

func (s *Store) Name() string {
	return "memory"
}

// Records returns a copy of the stored records in insertion order.
func (s *Store) Records(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out, nil
}

// UpsertRecords stores records keyed by ID; records without an ID are
// dropped. It returns the number of records stored.
func (s *Store) UpsertRecords(_ context.Context, records []core.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(records), nil
}

// ReplaceRecords swaps the stored set for records, keeping their order.
func (s *Store) ReplaceRecords(_ context.Context, records []core.Record) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.items
	s.order = nil
	s.items = make(map[string]core.Record, len(records))
	n := s.upsert(records)

	removed := 0
	for id := range before {
		if _, ok := s.items[id]; !ok {
			removed++
		}
	}
	return n, removed, nil
}

func (s *Store) upsert(records []core.Record) int {
	n := 0
	for _, r := range records {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		r.ID = id
		if _, ok := s.items[id]; !ok {
			s.order = append(s.order, id)
		}
		s.items[id] = r
		n++
	}
	return n
}

func (s *Store) Ping(context.Context) error {
	return nil
}

var (
	_ sheets.TransactionSource = (*Store)(nil)
	_ sheets.RecordWriter      = (*Store)(nil)
	_ sheets.RecordReplacer    = (*Store)(nil)
	_ sheets.Pinger            = (*Store)(nil)
)
