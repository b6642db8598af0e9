// Package backend builds the transaction source selected by configuration.
package backend

import (
	"context"

	"previsioni/internal/sheets"
)

// CleanupFunc releases resources held by a source.
type CleanupFunc func() error

// Result is a ready source plus its cleanup. Writer is nil when no
// configured backend can persist records.
type Result struct {
	Source  sheets.TransactionSource
	Writer  sheets.RecordWriter
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds what the factory needs from the application config.
type Config struct {
	Types []Type

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleYearsBack          int

	// Memory
	MemoryDataFile string
}

type Type string

const (
	SQLiteBackend Type = "sqlite"
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
