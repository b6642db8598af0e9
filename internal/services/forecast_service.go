// Package services orchestrates sources, the engine, the report cache and
// outbound notifications.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"previsioni/internal/amqp"
	"previsioni/internal/cache"
	"previsioni/internal/core"
	"previsioni/internal/engine"
	"previsioni/internal/forecast"
	"previsioni/internal/log"
	"previsioni/internal/recurring"
	"previsioni/internal/sheets"
)

var (
	// ErrSourceUnavailable wraps failures to load records.
	ErrSourceUnavailable = errors.New("transaction source unavailable")
	// ErrInvalidRequest wraps request parameters the engine rejects.
	ErrInvalidRequest = errors.New("invalid request")
)

// ReportPublisher receives a summary of every recomputed report.
type ReportPublisher interface {
	PublishReportComputed(ctx context.Context, msg *amqp.ReportComputedMessage) error
}

// ReportRequest selects what to compute. A zero Now means the current date;
// a zero Horizon means the configured default.
type ReportRequest struct {
	Now     time.Time
	Horizon int
	Window  *core.Month
}

type reportKey struct {
	fingerprint string
	now         string
	horizon     int
	window      string
}

type ForecastService struct {
	source    sheets.TransactionSource
	options   engine.Options
	cache     *cache.LRUCache[reportKey, engine.Report]
	publisher ReportPublisher
	logger    *log.Logger
	now       func() time.Time
}

// CacheConfig sizes the report cache. A zero Size disables caching.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// NewForecastService validates options up front. publisher may be nil.
func NewForecastService(source sheets.TransactionSource, options engine.Options, cacheConfig CacheConfig, publisher ReportPublisher, logger *log.Logger) (*ForecastService, error) {
	if source == nil {
		return nil, errors.New("nil transaction source")
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	var reports *cache.LRUCache[reportKey, engine.Report]
	if cacheConfig.Size > 0 {
		reports = cache.NewLRUCache[reportKey, engine.Report](cacheConfig.Size, cacheConfig.TTL)
	}
	return &ForecastService{
		source:    source,
		options:   options,
		cache:     reports,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentForecast),
		now:       time.Now,
	}, nil
}

// WithClock replaces the clock used for requests without Now and for cache
// expiry.
func (s *ForecastService) WithClock(now func() time.Time) *ForecastService {
	s.now = now
	if s.cache != nil {
		s.cache.WithClock(now)
	}
	return s
}

func (s *ForecastService) Options() engine.Options {
	return s.options
}

// Report loads the records and returns the report for req, reusing a cached
// report when neither the records nor the request changed.
func (s *ForecastService) Report(ctx context.Context, req ReportRequest) (engine.Report, error) {
	report, _, err := s.report(ctx, req)
	return report, err
}

func (s *ForecastService) report(ctx context.Context, req ReportRequest) (engine.Report, string, error) {
	opts, now, err := s.resolve(req)
	if err != nil {
		return engine.Report{}, "", err
	}

	records, err := s.source.Records(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load transactions",
			log.FieldSource, s.source.Name(), log.FieldError, err)
		return engine.Report{}, "", fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.source.Name(), err)
	}

	key := reportKey{
		fingerprint: Fingerprint(records),
		now:         now.Format(time.DateOnly),
		horizon:     opts.Trend.Horizon,
	}
	if opts.Window != nil {
		key.window = opts.Window.String()
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Report served from cache",
				log.FieldFingerprint, key.fingerprint[:12], log.FieldNow, key.now)
			return cached, key.fingerprint, nil
		}
	}

	eng, err := engine.New(opts)
	if err != nil {
		return engine.Report{}, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	report := eng.Run(records, now)

	for _, w := range report.Warnings {
		s.logger.WarnContext(ctx, "Record skipped",
			log.FieldRecordID, w.RecordID, log.FieldField, w.Field, log.FieldReason, w.Reason)
	}
	fields := log.NewFields().
		WithReport(key.now, len(records), len(report.Series), len(report.Categories.Categories), len(report.Warnings)).
		WithOperation(log.OpCompute)
	s.logger.InfoContext(ctx, "Report computed", fields.ToSlice()...)

	if s.cache != nil {
		s.cache.Set(key, report)
	}
	return report, key.fingerprint, nil
}

func (s *ForecastService) resolve(req ReportRequest) (engine.Options, time.Time, error) {
	opts := s.options
	if req.Horizon != 0 {
		opts.Trend.Horizon = req.Horizon
	}
	if req.Window != nil {
		w := *req.Window
		opts.Window = &w
	}
	if err := opts.Trend.Validate(); err != nil {
		return engine.Options{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	now := req.Now
	if now.IsZero() {
		now = s.now()
	}
	return opts, core.DateOf(now), nil
}

// Recurring returns the detected series as of req.Now.
func (s *ForecastService) Recurring(ctx context.Context, req ReportRequest) ([]recurring.Series, error) {
	report, err := s.Report(ctx, req)
	if err != nil {
		return nil, err
	}
	return report.Series, nil
}

// Projection returns months consecutive series summaries starting at first,
// or at the month after now when first is nil.
func (s *ForecastService) Projection(ctx context.Context, req ReportRequest, first *core.Month, months int) ([]forecast.MonthlySummary, error) {
	if months < 1 || months > 24 {
		return nil, fmt.Errorf("%w: months %d: must be between 1 and 24", ErrInvalidRequest, months)
	}
	report, err := s.Report(ctx, req)
	if err != nil {
		return nil, err
	}
	start := forecast.DefaultWindow(report.Now)
	if first != nil {
		start = *first
	}
	return forecast.ProjectMonths(report.Series, start, months), nil
}

// Recompute drops cached reports, computes a fresh one for the current date
// and publishes its summary.
func (s *ForecastService) Recompute(ctx context.Context) (engine.Report, error) {
	if s.cache != nil {
		s.cache.Purge()
	}
	report, fingerprint, err := s.report(ctx, ReportRequest{})
	if err != nil {
		return engine.Report{}, err
	}
	if s.publisher == nil {
		return report, nil
	}

	msg := &amqp.ReportComputedMessage{
		Now:              report.Now.Format(time.DateOnly),
		Fingerprint:      fingerprint,
		SeriesCount:      len(report.Series),
		Month:            report.Summary.Month.String(),
		ExpectedExpenses: report.Summary.ExpectedExpenses.String(),
		ExpectedRevenue:  report.Summary.ExpectedRevenue.String(),
		Balance:          report.Summary.Balance.String(),
		Categories:       len(report.Categories.Categories),
		Warnings:         len(report.Warnings),
		Timestamp:        s.now().UTC(),
	}
	if err := s.publisher.PublishReportComputed(ctx, msg); err != nil {
		// The report is still valid; only the notification failed.
		s.logger.ErrorContext(ctx, "Failed to publish report",
			log.FieldOperation, log.OpPublish, log.FieldError, err)
	}
	return report, nil
}

// Ready reports whether the source can be reached.
func (s *ForecastService) Ready(ctx context.Context) error {
	if p, ok := s.source.(sheets.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
	}
	return nil
}

// Cache returns the report cache for periodic cleanup, or nil when caching
// is disabled.
func (s *ForecastService) Cache() cache.Cleaner {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

// CacheStats exposes the report cache counters.
func (s *ForecastService) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}
