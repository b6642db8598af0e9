package backend

import (
	"context"
	"errors"
	"fmt"

	"previsioni/internal/log"
	"previsioni/internal/sheets"
	gsheet "previsioni/internal/sheets/google"
	"previsioni/internal/sheets/memory"
	"previsioni/internal/storage"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds every configured backend. Several backends are merged into
// one sheets.MultiSource in configuration order; the first writable backend
// becomes the Writer.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		sources  []sheets.TransactionSource
		writer   sheets.RecordWriter
		cleanups []CleanupFunc
	)
	cleanupAll := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	for _, t := range config.Types {
		src, cleanup, err := f.create(ctx, t, config)
		if err != nil {
			_ = cleanupAll()
			return nil, err
		}
		sources = append(sources, src)
		if cleanup != nil {
			cleanups = append(cleanups, cleanup)
		}
		if w, ok := src.(sheets.RecordWriter); ok && writer == nil {
			writer = w
		}
	}

	res := &Result{Writer: writer, Cleanup: cleanupAll}
	if len(sources) == 1 {
		res.Source = sources[0]
	} else {
		res.Source = sheets.NewMultiSource(sources...)
		f.logger.InfoContext(ctx, "Merging transaction sources", "count", len(sources))
	}
	return res, nil
}

func (f *DefaultFactory) create(ctx context.Context, t Type, config Config) (sheets.TransactionSource, CleanupFunc, error) {
	switch t {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, repo.Close, nil

	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Settings{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			SheetName:          config.GoogleSheetName,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			YearsBack:          config.GoogleYearsBack,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "years_back", config.GoogleYearsBack)
		return cli, nil, nil

	case MemoryBackend:
		store, err := memory.NewFromFile(config.MemoryDataFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize memory backend: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_file", config.MemoryDataFile)
		return store, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend type: %s", t)
}
