package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"previsioni/internal/config"
	"previsioni/internal/core"
	"previsioni/internal/log"
	"previsioni/internal/sheets"
)

func TestFactoryCreatesMemoryBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte(`[{"id":"1","amount":15,"date":"2025-01-05","type":"expense","description":"Netflix"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := NewFactory(log.Discard()).Create(context.Background(), Config{
		Types:          []Type{MemoryBackend},
		MemoryDataFile: path,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer res.Close()

	if res.Source.Name() != "memory" {
		t.Errorf("Source = %s, want memory", res.Source.Name())
	}
	if res.Writer == nil {
		t.Error("memory backend should be writable")
	}
	recs, err := res.Source.Records(context.Background())
	if err != nil || len(recs) != 1 {
		t.Fatalf("Records = %v, %v", recs, err)
	}
}

func TestFactoryMergesBackends(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFactory(log.Discard()).Create(context.Background(), Config{
		Types:        []Type{SQLiteBackend, MemoryBackend},
		SQLiteDBPath: filepath.Join(dir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer res.Close()

	if _, ok := res.Source.(*sheets.MultiSource); !ok {
		t.Fatalf("Source = %T, want *sheets.MultiSource", res.Source)
	}
	if _, err := res.Writer.UpsertRecords(context.Background(), []core.Record{{ID: "a", Amount: "1", Date: "2025-01-01", Type: "expense"}}); err != nil {
		t.Fatalf("UpsertRecords: %v", err)
	}
	recs, err := res.Source.Records(context.Background())
	if err != nil || len(recs) != 1 {
		t.Fatalf("Records = %v, %v", recs, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, true},
		{"memory", Config{Types: []Type{MemoryBackend}}, false},
		{"sqlite without path", Config{Types: []Type{SQLiteBackend}}, true},
		{"sheets without credentials", Config{Types: []Type{SheetsBackend}, GoogleSpreadsheetID: "x"}, true},
		{"duplicate", Config{Types: []Type{MemoryBackend, MemoryBackend}}, true},
		{"unknown", Config{Types: []Type{"postgres"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{DataBackend: "sqlite,memory", SQLiteDBPath: "./x.db"}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if len(cfg.Types) != 2 || cfg.Types[0] != SQLiteBackend || cfg.Types[1] != MemoryBackend {
		t.Errorf("Types = %v", cfg.Types)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
