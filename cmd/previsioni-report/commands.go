package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"previsioni/internal/cli"
	"previsioni/internal/config"
	"previsioni/internal/core"
	"previsioni/internal/log"
	"previsioni/internal/services"
	"previsioni/internal/sheets"
	"previsioni/internal/sheets/memory"
)

type rootOptions struct {
	backend string
	now     string
	horizon int
	month   string
	input   string
	compact bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "previsioni-report",
		Short: "Print recurring series and forecasts as JSON",
		Long: `previsioni-report detects recurring transaction series, projects the
next month from them and forecasts expense categories from their recent trend.
Records come from the configured backend or, with --input, from a JSON file.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "comma separated backends: sqlite, sheets, memory (default $DATA_BACKEND)")

	flags := cmd.Flags()
	flags.StringVar(&opts.now, "now", "", "reference date YYYY-MM-DD (default today)")
	flags.IntVar(&opts.horizon, "horizon", 0, "months of category projection (default $FORECAST_HORIZON)")
	flags.StringVar(&opts.month, "month", "", "month YYYY-MM summarized from the series (default the month after now)")
	flags.StringVar(&opts.input, "input", "", "read records from a JSON file instead of a backend")
	flags.BoolVar(&opts.compact, "compact", false, "print JSON on a single line")

	cmd.AddCommand(newImportCmd(opts))
	return cmd
}

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Store the records of a JSON file in the configured backend",
		Long: `import upserts the records of FILE, a JSON array of transactions, into the
first writable backend and announces the change over AMQP when configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, args[0])
		},
	}
}

func runReport(cmd *cobra.Command, opts *rootOptions) error {
	req, err := opts.request()
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd, opts.backend)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var source sheets.TransactionSource
	if opts.input != "" {
		records, err := readRecords(opts.input)
		if err != nil {
			return err
		}
		source = memory.New(records...)
	} else {
		backends, err := cli.InitBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer backends.Close()
		source = backends.Source
	}

	service, err := services.NewForecastService(source, cfg.EngineOptions(), services.CacheConfig{}, nil, logger)
	if err != nil {
		return err
	}
	report, err := service.Report(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

func runImport(cmd *cobra.Command, root *rootOptions, path string) error {
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd, root.backend)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backends, err := cli.InitBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()
	if backends.Writer == nil {
		return fmt.Errorf("backend %q cannot store records", cfg.DataBackend)
	}

	var publisher services.ChangePublisher
	amqpClient, err := cli.InitAMQP(ctx, cfg, logger, 3)
	if err != nil {
		return err
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	importer, err := services.NewImportService(backends.Writer, cfg.DataBackend, publisher, logger)
	if err != nil {
		return err
	}
	n, err := importer.Import(ctx, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", n)
	return nil
}

// setup loads the configuration, applying the --backend override, and
// builds a logger writing to stderr so that stdout carries only the result.
func setup(cmd *cobra.Command, backendOverride string) (*config.Config, *log.Logger, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if backendOverride != "" {
		cfg.DataBackend = backendOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logCfg, err := cfg.LoggerConfig(log.ComponentCLI)
	if err != nil {
		return nil, nil, err
	}
	logCfg.Output = cmd.ErrOrStderr()
	return cfg, log.New(logCfg), nil
}

func (o *rootOptions) request() (services.ReportRequest, error) {
	var req services.ReportRequest
	if o.now != "" {
		now, err := time.Parse(time.DateOnly, o.now)
		if err != nil {
			return req, fmt.Errorf("invalid --now %q: want YYYY-MM-DD", o.now)
		}
		req.Now = now
	}
	if o.horizon < 0 {
		return req, fmt.Errorf("invalid --horizon %d: must be positive", o.horizon)
	}
	req.Horizon = o.horizon
	if o.month != "" {
		m, err := core.ParseMonth(o.month)
		if err != nil {
			return req, fmt.Errorf("invalid --month %q: want YYYY-MM", o.month)
		}
		req.Window = &m
	}
	return req, nil
}

func readRecords(path string) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()
	return decodeRecords(f)
}

func decodeRecords(r io.Reader) ([]core.Record, error) {
	var records []core.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

