// Package records defines the row value type shared by every pipeline stage.
//
// A Record is an unordered mapping from column name to value. Values stay
// opaque: strings as read from the source, nil for absent/null, and whatever
// scalar a later stage may have placed there. Column ORDER is never carried by
// the Record itself; it always comes from the declaring schema or the source
// header.
package records

import "fmt"

// Record is one logical row.
type Record map[string]any

// Clone returns a shallow copy of r. Values are shared; for the string/nil
// payloads used by this pipeline that is a full copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge combines the given records column-wise into a new Record. Later
// arguments overwrite same-named columns from earlier ones, so the precedence
// order is exactly the argument order. Nil records are skipped.
func Merge(recs ...Record) Record {
	out := Record{}
	for _, r := range recs {
		for k, v := range r {
			out[k] = v
		}
	}
	return out
}

// String returns the value of col rendered as a string, with nil and missing
// columns both rendered as "". Non-string scalars go through fmt.
func (r Record) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Has reports whether col is present with a non-nil, non-empty value.
func (r Record) Has(col string) bool {
	return r.String(col) != ""
}
