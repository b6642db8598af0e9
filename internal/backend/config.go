package backend

import (
	"errors"
	"fmt"

	"previsioni/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	var types []Type
	for _, name := range appConfig.Backends() {
		t := Type(name)
		if !t.IsValid() {
			return Config{}, fmt.Errorf("invalid backend type in config: %s", name)
		}
		types = append(types, t)
	}

	cfg := Config{
		Types:                    types,
		SQLiteDBPath:             appConfig.SQLiteDBPath,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleYearsBack:          appConfig.GoogleYearsBack,
		MemoryDataFile:           appConfig.MemoryDataFile,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Types) == 0 {
		return errors.New("no backend configured")
	}
	seen := map[Type]bool{}
	for _, t := range c.Types {
		if !t.IsValid() {
			return fmt.Errorf("invalid backend type: %s", t)
		}
		if seen[t] {
			return fmt.Errorf("backend %s listed twice", t)
		}
		seen[t] = true

		switch t {
		case SQLiteBackend:
			if c.SQLiteDBPath == "" {
				return errors.New("SQLite database path is required for sqlite backend")
			}
		case SheetsBackend:
			if c.GoogleSpreadsheetID == "" {
				return errors.New("Google Spreadsheet ID is required for sheets backend")
			}
			if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
				return errors.New("service account credentials are required for sheets backend")
			}
		}
	}
	return nil
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{SQLiteBackend, SheetsBackend, MemoryBackend}
}
