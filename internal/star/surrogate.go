package star

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"crashdw/pkg/records"
)

// tupleSep joins tuple values; tupleNil encodes a null value. Null and ""
// encode differently on purpose: two tuples are equal only if nulls line up
// with nulls.
const (
	tupleSep = '\x1f'
	tupleNil = '\x00'
)

// Assigner deduplicates a synthetically keyed dimension by its full content
// tuple and hands out dense integer surrogate ids, 1..N in first-seen order.
//
// The tuple→id mapping is kept for the whole run: the fact populator resolves
// ids through the same Assigner instead of re-scanning the dimension. Because
// ids follow first-seen order, reordering the input reorders the ids; that is
// a documented property of the pipeline, not a defect.
//
// The mapping is keyed by the xxh3 hash of the canonical tuple encoding, with
// the encodings retained per bucket so two distinct tuples can never alias
// through a hash collision.
//
// An Assigner is single-writer state (the id counter is shared mutable);
// callers that parallelize do so across dimensions, one Assigner each.
type Assigner struct {
	Table Table

	keyCols []string
	next    int
	buckets map[uint64][]tupleEntry
}

type tupleEntry struct {
	enc string
	id  int
}

// NewAssigner builds an Assigner for a synthetically keyed table.
func NewAssigner(t Table) (*Assigner, error) {
	if !t.Synthetic() {
		return nil, fmt.Errorf("star: table %q has no id column; nothing to assign", t.Name)
	}
	return &Assigner{
		Table:   t,
		keyCols: t.KeyColumns(),
		next:    1,
		buckets: map[uint64][]tupleEntry{},
	}, nil
}

// encodeTuple renders the row's key-column values, in schema-declared order,
// into one canonical string. Missing and nil both encode as null, so a merged
// row and its projection produce the same tuple.
func (a *Assigner) encodeTuple(row records.Record) string {
	var b strings.Builder
	for i, c := range a.keyCols {
		if i > 0 {
			b.WriteByte(tupleSep)
		}
		v, ok := row[c]
		if !ok || v == nil {
			b.WriteByte(tupleNil)
			continue
		}
		if s, isStr := v.(string); isStr {
			b.WriteString(s)
		} else {
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// lookup returns the id for an encoded tuple.
func (a *Assigner) lookup(enc string) (int, bool) {
	h := xxh3.HashString(enc)
	for _, e := range a.buckets[h] {
		if e.enc == enc {
			return e.id, true
		}
	}
	return 0, false
}

// assign returns the tuple's id, allocating the next counter value on first
// sight. The second result reports whether the tuple was new.
func (a *Assigner) assign(enc string) (int, bool) {
	if id, ok := a.lookup(enc); ok {
		return id, false
	}
	id := a.next
	a.next++
	h := xxh3.HashString(enc)
	a.buckets[h] = append(a.buckets[h], tupleEntry{enc: enc, id: id})
	return id, true
}

// Assign deduplicates the candidate rows by content tuple and returns the
// surviving rows with their id column filled in, in first-seen order. Repeat
// tuples are dropped from the output but recorded in the mapping, so later
// IDFor lookups resolve them.
func (a *Assigner) Assign(rows []records.Record) []records.Record {
	out := make([]records.Record, 0, len(rows))
	for _, r := range rows {
		id, fresh := a.assign(a.encodeTuple(r))
		if !fresh {
			continue
		}
		r[a.Table.IDColumn] = id
		out = append(out, r)
	}
	return out
}

// IDFor resolves the surrogate id for any row carrying the dimension's
// key columns (typically a merged wide row). It never allocates; a miss means
// the row was not seen by Assign, which indicates a key-ordering bug between
// assignment and lookup rather than bad data.
func (a *Assigner) IDFor(row records.Record) (int, bool) {
	return a.lookup(a.encodeTuple(row))
}

// Len returns the number of distinct tuples seen, which equals the highest
// assigned id.
func (a *Assigner) Len() int { return a.next - 1 }
