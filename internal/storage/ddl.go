package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"crashdw/internal/star"
)

// Dialect carries the per-backend SQL spellings the DDL generator needs.
// Backends register theirs alongside their factory.
type Dialect struct {
	// QuoteIdent quotes one identifier.
	QuoteIdent func(string) string

	// IntType and TextType are the column types for surrogate ids and
	// everything else. The pipeline keeps source values as text; typed
	// columns are a warehouse-side concern.
	IntType  string
	TextType string

	// IfNotExists emits CREATE TABLE IF NOT EXISTS. Backends without the
	// clause (mssql) guard with their own existence check instead.
	IfNotExists bool

	// ExistsGuard, when set, wraps the CREATE statement for backends without
	// IF NOT EXISTS support. Receives the raw table name and the statement.
	ExistsGuard func(table, create string) string
}

var (
	dialectMu sync.RWMutex
	dialects  = map[string]Dialect{}
)

// RegisterDialect installs the DDL dialect for a backend kind.
func RegisterDialect(kind string, d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (Dialect, bool) {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	d, ok := dialects[kind]
	return d, ok
}

// CreateTableSQL renders the CREATE TABLE statement for one star table.
// Synthetic dimensions get an integer primary key on their id column; natural
// dimensions key on their natural key; the fact table keys on DTUID and
// carries a foreign key per synthetic dimension.
func CreateTableSQL(d Dialect, s star.Schema, t star.Table) string {
	q := d.QuoteIdent
	var cols []string
	for _, c := range t.Columns {
		typ := d.TextType
		if isIntColumn(s, t, c) {
			typ = d.IntType
		}
		cols = append(cols, fmt.Sprintf("%s %s", q(c), typ))
	}

	var constraints []string
	switch {
	case t.Synthetic():
		constraints = append(constraints, fmt.Sprintf("PRIMARY KEY (%s)", q(t.IDColumn)))
	case len(t.NaturalKey) > 0:
		keys := make([]string, len(t.NaturalKey))
		for i, k := range t.NaturalKey {
			keys[i] = q(k)
		}
		constraints = append(constraints, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	case t.Name == s.Fact.Name:
		constraints = append(constraints, fmt.Sprintf("PRIMARY KEY (%s)", q("DTUID")))
		for _, dim := range s.SyntheticDimensions() {
			constraints = append(constraints, fmt.Sprintf(
				"FOREIGN KEY (%s) REFERENCES %s (%s)",
				q(dim.IDColumn), q(dim.Name), q(dim.IDColumn)))
		}
	}

	body := strings.Join(append(cols, constraints...), ",\n  ")
	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", q(t.Name), body)
	if d.IfNotExists {
		create = strings.Replace(create, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
	} else if d.ExistsGuard != nil {
		create = d.ExistsGuard(t.Name, create)
	}
	return create
}

// isIntColumn reports whether the column holds an integer id: a synthetic
// dimension id (on the dimension or referenced from the fact) or the fact's
// own DTUID.
func isIntColumn(s star.Schema, t star.Table, col string) bool {
	if t.Synthetic() && col == t.IDColumn {
		return true
	}
	if t.Name == s.Fact.Name {
		if col == "DTUID" {
			return true
		}
		for _, dim := range s.SyntheticDimensions() {
			if col == dim.IDColumn {
				return true
			}
		}
	}
	return false
}

// EnsureTables creates every star table that does not exist yet, dimensions
// before the fact table so the fact's foreign keys resolve.
func EnsureTables(ctx context.Context, repo Repository, kind string, s star.Schema) error {
	d, ok := DialectFor(kind)
	if !ok {
		return fmt.Errorf("storage: no DDL dialect registered for kind %q", kind)
	}
	for _, t := range s.Tables() {
		if err := repo.Exec(ctx, CreateTableSQL(d, s, t)); err != nil {
			return fmt.Errorf("storage: create %s: %w", t.Name, err)
		}
	}
	return nil
}
