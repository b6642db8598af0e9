// Package sheets defines the ports through which the engine receives
// transaction records, plus a fan-in over several sources.
package sheets

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"previsioni/internal/core"
)

type (
	// TransactionSource yields the full, unvalidated record set. Sources are
	// read-only from the engine's point of view.
	TransactionSource interface {
		Name() string
		Records(ctx context.Context) ([]core.Record, error)
	}

	// RecordWriter is implemented by sources that can persist records.
	RecordWriter interface {
		UpsertRecords(ctx context.Context, records []core.Record) (int, error)
	}

	// RecordReplacer is implemented by sources that can make their stored
	// set equal to a given one. IDs missing from records are deleted.
	RecordReplacer interface {
		ReplaceRecords(ctx context.Context, records []core.Record) (stored, removed int, err error)
	}

	// Pinger is implemented by sources that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// MultiSource reads several sources concurrently and concatenates their
// records in source order. When two sources carry the same record ID the
// earlier source wins.
type MultiSource struct {
	sources []TransactionSource
}

func NewMultiSource(sources ...TransactionSource) *MultiSource {
	return &MultiSource{sources: sources}
}

func (m *MultiSource) Name() string {
	return "multi"
}

func (m *MultiSource) Records(ctx context.Context) ([]core.Record, error) {
	results := make([][]core.Record, len(m.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			recs, err := src.Records(gctx)
			if err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []core.Record
	for _, recs := range results {
		for _, r := range recs {
			if r.ID != "" {
				if _, dup := seen[r.ID]; dup {
					continue
				}
				seen[r.ID] = struct{}{}
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// Ping checks every source that supports it.
func (m *MultiSource) Ping(ctx context.Context) error {
	for _, src := range m.sources {
		if p, ok := src.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
		}
	}
	return nil
}

var _ TransactionSource = (*MultiSource)(nil)
