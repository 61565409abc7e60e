// Package sqlite implements the SQLite backend on the pure-Go modernc
// driver, so a local verification run needs no server and no cgo. Bulk loads
// are prepared single-row inserts inside one transaction per batch, which is
// the fast path for SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"crashdw/internal/storage"
)

// Repository is the database/sql-backed SQLite storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens the database file named by dsn.
func NewRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// The loader is single-writer; one connection avoids table lock churn.
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

// CopyInto inserts all rows in one transaction through a prepared statement.
func (r *Repository) CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, fmt.Errorf("insert into %s: %w", table, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Exec runs one statement.
func (r *Repository) Exec(ctx context.Context, q string) error {
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Close closes the database.
func (r *Repository) Close() { r.db.Close() }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func init() {
	storage.Register("sqlite", func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(cfg.DSN)
	})
	storage.RegisterDialect("sqlite", storage.Dialect{
		QuoteIdent:  quoteIdent,
		IntType:     "INTEGER",
		TextType:    "TEXT",
		IfNotExists: true,
	})
}
