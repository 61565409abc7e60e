package star

import "crashdw/pkg/records"

// Project builds the narrow row of t from one merged row: exactly the
// declared columns, with columns absent from the source defaulting to nil.
// Nil means "absent"; an empty string stays an empty string — the two are
// distinct values and must survive projection unconflated.
func Project(row records.Record, t Table) records.Record {
	out := make(records.Record, len(t.Columns))
	for _, c := range t.Columns {
		if v, ok := row[c]; ok {
			out[c] = v
		} else {
			out[c] = nil
		}
	}
	return out
}

// ProjectAll projects every merged row. No filtering happens here: each input
// row contributes exactly one candidate row, so callers can rely on positional
// correspondence with the merged set.
func ProjectAll(rows []records.Record, t Table) []records.Record {
	out := make([]records.Record, len(rows))
	for i, r := range rows {
		out[i] = Project(r, t)
	}
	return out
}

// AllNull reports whether every declared non-id column of the row is nil or
// empty. The id column is excluded so a pre-assigned id alone does not make a
// row "non-empty".
func AllNull(row records.Record, t Table) bool {
	for _, c := range t.KeyColumns() {
		v, ok := row[c]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return false
	}
	return true
}

// FilterEmpty drops all-null projections. It is a separate, optional step
// applied only to tables where an all-null row is meaningless (Table.
// DropWhenEmpty); projection itself never filters.
func FilterEmpty(rows []records.Record, t Table) []records.Record {
	out := rows[:0:0]
	for _, r := range rows {
		if !AllNull(r, t) {
			out = append(out, r)
		}
	}
	return out
}
