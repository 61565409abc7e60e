// Package index builds in-memory lookup structures over source rows.
//
// Two shapes are provided: a single-valued Index for keys assumed unique
// (crash reports by RD_NO) and a MultiIndex that accumulates every row
// sharing a key (vehicles of one crash). Composite keys are supported; key
// parts are joined with an unlikely separator byte rather than nested maps.
package index

import (
	"strings"

	"crashdw/pkg/records"
)

// keySep separates composite key parts. 0x1f (unit separator) cannot appear
// in the identifier columns these indices are built over.
const keySep = '\x1f'

// KeyOf builds the composite key of r over cols. A missing or nil column
// contributes the empty string, which participates in the key like any other
// value; rows with all key columns absent therefore collide into one bucket.
func KeyOf(r records.Record, cols []string) string {
	if len(cols) == 1 {
		return r.String(cols[0])
	}
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte(keySep)
		}
		b.WriteString(r.String(c))
	}
	return b.String()
}

// Join builds the same composite key directly from key part values, for
// lookups where the caller already extracted the parts.
func Join(parts ...string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts, string(keySep))
}

// Index maps a composite natural key to exactly one row. Building over
// non-unique keys is lossy: the last row wins and the collision is counted,
// never silently ignored.
type Index struct {
	keyCols []string
	m       map[string]records.Record

	// Collisions counts rows that overwrote an earlier row with the same key.
	Collisions int
}

// Build indexes rows by keyCols, last write wins.
func Build(rows []records.Record, keyCols ...string) *Index {
	ix := &Index{
		keyCols: keyCols,
		m:       make(map[string]records.Record, len(rows)),
	}
	for _, r := range rows {
		k := KeyOf(r, keyCols)
		if _, dup := ix.m[k]; dup {
			ix.Collisions++
		}
		ix.m[k] = r
	}
	return ix
}

// Lookup returns the row for the given key parts.
func (ix *Index) Lookup(parts ...string) (records.Record, bool) {
	r, ok := ix.m[Join(parts...)]
	return r, ok
}

// Len returns the number of distinct keys.
func (ix *Index) Len() int { return len(ix.m) }

// MultiIndex maps a composite key to every row carrying it, in input order.
type MultiIndex struct {
	keyCols []string
	m       map[string][]records.Record
}

// BuildMulti indexes rows by keyCols, accumulating all rows per key.
func BuildMulti(rows []records.Record, keyCols ...string) *MultiIndex {
	ix := &MultiIndex{
		keyCols: keyCols,
		m:       make(map[string][]records.Record, len(rows)),
	}
	for _, r := range rows {
		k := KeyOf(r, keyCols)
		ix.m[k] = append(ix.m[k], r)
	}
	return ix
}

// Lookup returns every row for the given key parts, in input order.
func (ix *MultiIndex) Lookup(parts ...string) []records.Record {
	return ix.m[Join(parts...)]
}

// First returns the first row for the given key parts.
func (ix *MultiIndex) First(parts ...string) (records.Record, bool) {
	rs := ix.m[Join(parts...)]
	if len(rs) == 0 {
		return nil, false
	}
	return rs[0], true
}

// Len returns the number of distinct keys.
func (ix *MultiIndex) Len() int { return len(ix.m) }
