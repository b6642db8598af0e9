// Package storage persists raw transaction records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"previsioni/internal/core"
	"previsioni/internal/sheets"
)

// SQLiteRepository stores records verbatim. Amount and date are kept as
// text so a malformed row becomes an engine warning rather than a scan
// error.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ sheets.TransactionSource = (*SQLiteRepository)(nil)
	_ sheets.RecordWriter      = (*SQLiteRepository)(nil)
	_ sheets.RecordReplacer    = (*SQLiteRepository)(nil)
	_ sheets.Pinger            = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Name() string {
	return "sqlite"
}

// Ping reports ready once the transactions table can be read.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	_, err := r.Count(ctx)
	return err
}

// Records returns every stored record ordered by date then ID.
func (r *SQLiteRepository) Records(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, date, type, category, description
		FROM transactions
		ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var rec core.Record
		var amount string
		if err := rows.Scan(&rec.ID, &amount, &rec.Date, &rec.Type, &rec.Category, &rec.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Amount = core.RawAmount(amount)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// UpsertRecords inserts or replaces records by ID in a single transaction.
// Records without an ID are skipped.
func (r *SQLiteRepository) UpsertRecords(ctx context.Context, records []core.Record) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := upsert(ctx, tx, records)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Transactions upserted", "component", "storage", "count", n)
	return n, nil
}

// ReplaceRecords makes the stored set equal to records: records are upserted
// and every stored ID absent from records is deleted, in one transaction.
// It returns the number of records stored and removed.
func (r *SQLiteRepository) ReplaceRecords(ctx context.Context, records []core.Record) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := upsert(ctx, tx, records)
	if err != nil {
		return 0, 0, err
	}

	keep := make(map[string]struct{}, len(records))
	for _, rec := range records {
		keep[strings.TrimSpace(rec.ID)] = struct{}{}
	}
	rows, err := tx.QueryContext(ctx, `SELECT id FROM transactions`)
	if err != nil {
		return 0, 0, fmt.Errorf("query transaction ids: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan transaction id: %w", err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, fmt.Errorf("iterate transaction ids: %w", err)
	}
	rows.Close()

	for _, id := range stale {
		if err := deleteRecord(ctx, tx, id); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Transactions replaced", "component", "storage", "count", n, "removed", len(stale))
	return n, len(stale), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func upsert(ctx context.Context, db execer, records []core.Record) (int, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO transactions (id, amount, date, type, category, description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			date = excluded.date,
			type = excluded.type,
			category = excluded.category,
			description = excluded.description,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, string(rec.Amount), rec.Date, rec.Type, rec.Category, rec.Description); err != nil {
			return 0, fmt.Errorf("upsert transaction %s: %w", id, err)
		}
		n++
	}
	return n, nil
}

func deleteRecord(ctx context.Context, db execer, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
