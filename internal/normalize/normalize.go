// Package normalize standardizes join-key values before indexing.
//
// The three source extracts disagree on identifier formatting: report numbers
// appear with stray whitespace and mixed case, and numeric identifiers that
// passed through a spreadsheet at some point come back as floats ("1234.0"
// where another extract says "1234"). Every key column is pushed through the
// same canonical form here so that the index and merge stages only ever see
// one spelling of a given identifier.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"crashdw/pkg/records"
)

// stripMarks removes diacritic marks: NFD decompose, drop combining marks,
// NFC recompose.
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Key returns the canonical form of a single key value:
//
//  1. trim surrounding whitespace
//  2. strip diacritics and upper-case
//  3. if the result parses as a float with no fractional part (e.g. "1234.0"),
//     re-encode it as a plain decimal integer string
//
// Values that fail any parse step pass through unchanged after trimming;
// Key never fails on malformed input.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToUpper(s)
	return canonicalNumber(s)
}

// canonicalNumber collapses float-looking integers ("123.0", "1.23e2") onto
// their plain decimal form so they compare equal to "123". Anything that is
// not a parseable, integral, safely-representable float is returned as-is.
func canonicalNumber(s string) string {
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}

// Keys canonicalizes the named columns of r in place. Absent columns are left
// absent (they are NOT created as empty strings; the indexer handles missing
// keys itself). Non-string values are left untouched.
func Keys(r records.Record, cols []string) {
	for _, c := range cols {
		v, ok := r[c]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			r[c] = Key(s)
		}
	}
}

// All canonicalizes the named columns on every row.
func All(rows []records.Record, cols []string) {
	for _, r := range rows {
		Keys(r, cols)
	}
}
