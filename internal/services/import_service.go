package services

import (
	"context"
	"errors"
	"fmt"

	"previsioni/internal/core"
	"previsioni/internal/log"
	"previsioni/internal/sheets"
)

// ChangePublisher announces that stored records changed.
type ChangePublisher interface {
	PublishTransactionsChanged(ctx context.Context, source string, count int) error
}

// ImportService stores records and notifies recompute workers.
type ImportService struct {
	writer    sheets.RecordWriter
	source    string
	publisher ChangePublisher
	logger    *log.Logger
}

// NewImportService returns a service writing to writer. publisher may be nil.
func NewImportService(writer sheets.RecordWriter, source string, publisher ChangePublisher, logger *log.Logger) (*ImportService, error) {
	if writer == nil {
		return nil, errors.New("no writable backend configured")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ImportService{
		writer:    writer,
		source:    source,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentStorage),
	}, nil
}

// Import stores records first and then publishes a change message. Records
// are stored verbatim; invalid ones surface later as report warnings. A
// publish failure is logged and does not fail the import.
func (s *ImportService) Import(ctx context.Context, records []core.Record) (int, error) {
	n, err := s.writer.UpsertRecords(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("store records: %w", err)
	}
	s.logger.InfoContext(ctx, "Records imported",
		log.FieldSource, s.source, log.FieldRecordCount, n, log.FieldOperation, log.OpUpsert)

	if n == 0 {
		return 0, nil
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping change message")
		return n, nil
	}
	if err := s.publisher.PublishTransactionsChanged(ctx, s.source, n); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			log.FieldSource, s.source, log.FieldError, err)
	}
	return n, nil
}
