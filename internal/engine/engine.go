// Package engine wires record parsing, series detection and both forecasts
// into a single pure computation.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"previsioni/internal/core"
	"previsioni/internal/forecast"
	"previsioni/internal/recurring"
)

// Options controls a run. The zero value is not valid; start from
// DefaultOptions.
type Options struct {
	Thresholds recurring.Thresholds
	Trend      forecast.TrendOptions
	// Window overrides the month projected by the series summary. When nil
	// the month following now is used.
	Window *core.Month
}

func DefaultOptions() Options {
	return Options{
		Thresholds: recurring.DefaultThresholds(),
		Trend:      forecast.DefaultTrendOptions(),
	}
}

func (o Options) Validate() error {
	var errs []error
	if err := o.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thresholds: %w", err))
	}
	if err := o.Trend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("trend: %w", err))
	}
	return errors.Join(errs...)
}

// Report is the complete output of one run. The series summary and the
// category forecast are computed independently and never merged.
type Report struct {
	Now        time.Time               `json:"-"`
	Series     []recurring.Series      `json:"series"`
	Summary    forecast.MonthlySummary `json:"summary"`
	Categories forecast.TrendReport    `json:"categories"`
	Warnings   []core.Warning          `json:"warnings"`
}

func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(struct {
		Now string `json:"now"`
		alias
	}{r.Now.Format(time.DateOnly), alias(r)})
}

// Engine holds validated options and a detector built from them.
type Engine struct {
	opts     Options
	detector *recurring.Detector
}

func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	d, err := recurring.NewDetector(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	return &Engine{opts: opts, detector: d}, nil
}

func (e *Engine) Options() Options {
	return e.opts
}

// Run computes a report from raw records as of now. It performs no I/O and
// never reads the clock.
func (e *Engine) Run(records []core.Record, now time.Time) Report {
	txs, warnings := core.ParseRecords(records)
	return e.RunTransactions(txs, warnings, now)
}

// RunTransactions is Run for already validated transactions.
func (e *Engine) RunTransactions(txs []core.Transaction, warnings []core.Warning, now time.Time) Report {
	today := core.DateOf(now)

	window := forecast.DefaultWindow(today)
	if e.opts.Window != nil {
		window = *e.opts.Window
	}

	series := e.detector.Detect(txs)
	if warnings == nil {
		warnings = []core.Warning{}
	}

	return Report{
		Now:        today,
		Series:     series,
		Summary:    forecast.Summarize(series, window),
		Categories: forecast.ForecastCategories(txs, today, e.opts.Trend),
		Warnings:   warnings,
	}
}

// Run is a convenience wrapper building an Engine for a single call.
func Run(records []core.Record, now time.Time, opts Options) (Report, error) {
	e, err := New(opts)
	if err != nil {
		return Report{}, err
	}
	return e.Run(records, now), nil
}
