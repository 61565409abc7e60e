// Package storage contains the backend-agnostic database contracts: the
// Repository interface, the backend factory, DDL bootstrapping, and the
// batched star-schema loader. Concrete backends live in subpackages and
// register themselves at init time; callers pick one by name.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is one open database connection pool able to receive the star
// tables.
type Repository interface {
	// CopyInto bulk-inserts rows into table. Row values are aligned to the
	// columns order; nil values are SQL NULLs. Returns rows inserted.
	CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Exec runs one statement, for DDL.
	Exec(ctx context.Context, sql string) error

	// Close releases the pool.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind names a registered backend: "postgres", "sqlite", "mssql", "mysql".
	Kind string

	// DSN is the backend-specific connection string.
	DSN string
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a backend factory under kind. Called from backend
// packages' init functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend names, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
