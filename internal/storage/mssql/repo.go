// Package mssql implements the SQL Server backend, matching the warehouse
// the original deployment loads into. Bulk loads use the driver's TDS bulk
// copy (mssql.CopyIn).
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"crashdw/internal/storage"
)

// Repository is the go-mssqldb-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens a pool for the DSN and verifies connectivity.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mssql ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// CopyInto bulk-copies rows over TDS.
func (r *Repository) CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("bulk copy prepare %s: %w", table, err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("bulk copy %s: %w", table, err)
		}
	}
	// The final Exec with no args flushes the bulk batch.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		stmt.Close()
		return 0, fmt.Errorf("bulk copy flush %s: %w", table, err)
	}
	if err := stmt.Close(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
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

// Close closes the pool.
func (r *Repository) Close() { r.db.Close() }

func quoteIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
	storage.RegisterDialect("mssql", storage.Dialect{
		QuoteIdent: quoteIdent,
		IntType:    "INT",
		TextType:   "NVARCHAR(500)",
		ExistsGuard: func(table, create string) string {
			return fmt.Sprintf(
				"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND",
				strings.ReplaceAll(table, "'", "''"), create)
		},
	})
}
