// Package worker recomputes reports when transactions change.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"previsioni/internal/amqp"
	"previsioni/internal/engine"
	"previsioni/internal/log"
	"previsioni/internal/sheets"
)

// Recomputer is the part of the forecast service the worker drives.
type Recomputer interface {
	Recompute(ctx context.Context) (engine.Report, error)
}

// Mirror copies records from a remote source into local storage before a
// recompute. Local records missing from the remote are removed.
type Mirror struct {
	Source sheets.TransactionSource
	Writer sheets.RecordReplacer
}

// RecomputeWorker handles change messages. Deliveries are consumed one at a
// time, so the worker needs no locking beyond the bookkeeping of lastRun.
type RecomputeWorker struct {
	service Recomputer
	mirror  *Mirror
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewRecomputeWorker returns a worker. mirror may be nil.
func NewRecomputeWorker(service Recomputer, mirror *Mirror, logger *log.Logger) (*RecomputeWorker, error) {
	if service == nil {
		return nil, errors.New("nil recomputer")
	}
	if mirror != nil && (mirror.Source == nil || mirror.Writer == nil) {
		return nil, errors.New("mirror needs both a source and a writer")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecomputeWorker{
		service: service,
		mirror:  mirror,
		logger:  logger.WithComponent(log.ComponentWorker),
		now:     time.Now,
	}, nil
}

// WithClock replaces the clock used to coalesce messages.
func (w *RecomputeWorker) WithClock(now func() time.Time) *RecomputeWorker {
	w.now = now
	return w
}

// HandleChange is an amqp.ChangeHandler. Messages stamped before the start
// of the last successful run are already reflected in it and are skipped.
func (w *RecomputeWorker) HandleChange(ctx context.Context, msg *amqp.TransactionsChangedMessage) error {
	if w.alreadyCovered(msg.Timestamp) {
		w.logger.DebugContext(ctx, "Change already covered by last recompute",
			log.FieldSource, msg.Source, "timestamp", msg.Timestamp)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldSource, msg.Source, log.FieldRecordCount, msg.Count)

	return w.run(ctx, "message")
}

// StartupRecompute computes a report once before consuming, recovering from
// changes missed while the worker was down.
func (w *RecomputeWorker) StartupRecompute(ctx context.Context) error {
	if err := w.run(ctx, "startup"); err != nil {
		return fmt.Errorf("startup recompute: %w", err)
	}
	return nil
}

// RunPeriodic recomputes every interval until ctx is cancelled. It is the
// backup path for lost messages; failures are logged and retried on the
// next tick.
func (w *RecomputeWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.run(ctx, "periodic"); err != nil {
				w.logger.ErrorContext(ctx, "Periodic recompute failed", log.FieldError, err)
			}
		}
	}
}

func (w *RecomputeWorker) run(ctx context.Context, trigger string) error {
	started := w.now()

	if w.mirror != nil {
		if err := w.syncMirror(ctx); err != nil {
			return err
		}
	}

	report, err := w.service.Recompute(ctx)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}

	w.mu.Lock()
	w.lastRun = started
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Report recomputed",
		"trigger", trigger,
		log.FieldSeriesCount, len(report.Series),
		log.FieldWarnings, len(report.Warnings),
		log.FieldDuration, w.now().Sub(started).Milliseconds())
	return nil
}

func (w *RecomputeWorker) syncMirror(ctx context.Context) error {
	records, err := w.mirror.Source.Records(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.mirror.Source.Name(), err)
	}
	n, removed, err := w.mirror.Writer.ReplaceRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", w.mirror.Source.Name(), err)
	}
	fields := []any{log.FieldSource, w.mirror.Source.Name(), log.FieldRecordCount, n, "removed", removed}
	if c, ok := w.mirror.Writer.(counter); ok {
		if stored, err := c.Count(ctx); err == nil {
			fields = append(fields, "stored", stored)
		}
	}
	w.logger.InfoContext(ctx, "Source mirrored", fields...)
	return nil
}

type counter interface {
	Count(ctx context.Context) (int, error)
}

func (w *RecomputeWorker) alreadyCovered(stamp time.Time) bool {
	if stamp.IsZero() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.lastRun.IsZero() && stamp.Before(w.lastRun)
}
