// Package mysql implements the MySQL backend. The driver has no COPY
// equivalent, so bulk loads are multi-row INSERT statements sized to stay
// under the default max_allowed_packet.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"crashdw/internal/storage"
)

// insertChunk caps rows per INSERT statement.
const insertChunk = 500

// Repository is the go-sql-driver-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens a pool for the DSN and verifies connectivity.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// CopyInto inserts rows in multi-row INSERT chunks inside one transaction.
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
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	rowMarks := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var n int64
	for lo := 0; lo < len(rows); lo += insertChunk {
		hi := min(lo+insertChunk, len(rows))
		chunk := rows[lo:hi]

		marks := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			marks[i] = rowMarks
			args = append(args, row...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return n, fmt.Errorf("insert into %s: %w", table, err)
		}
		rn, _ := res.RowsAffected()
		n += rn
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

// Close closes the pool.
func (r *Repository) Close() { r.db.Close() }

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
	storage.RegisterDialect("mysql", storage.Dialect{
		QuoteIdent:  quoteIdent,
		IntType:     "INT",
		TextType:    "TEXT",
		IfNotExists: true,
	})
}
