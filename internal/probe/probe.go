// Package probe samples an extract and reports its shape against the star
// schema: which columns it carries, how dense they are, and which schema
// columns it cannot supply. Run it against a fresh portal download before
// pointing a pipeline at it; the portal renames columns without notice.
package probe

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"crashdw/internal/star"
	"crashdw/internal/tabio"
)

// Options configures one probe run.
type Options struct {
	// MaxRows caps sampled data rows; 0 means 1000.
	MaxRows int

	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// Schema to compare against; zero value skips the comparison.
	Schema star.Schema
}

// ColumnStat describes one extract column over the sample.
type ColumnStat struct {
	Name    string
	NonNull int
}

// Report is the probe result.
type Report struct {
	Columns     []ColumnStat
	RowsSampled int
	RowsSkipped int

	// Covered and Missing partition the schema's column set by whether the
	// extract supplies it. Only populated when a schema was given.
	Covered []string
	Missing []string
}

// Sample reads up to MaxRows rows and builds the report.
func Sample(r io.Reader, opt Options) (*Report, error) {
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}
	rows, skipped, err := tabio.Read(r, tabio.ReadOptions{
		Comma:     opt.Comma,
		TrimSpace: true,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	nonNull := map[string]int{}
	seen := map[string]bool{}
	var names []string
	for _, row := range rows {
		for col, v := range row {
			if !seen[col] {
				seen[col] = true
				names = append(names, col)
			}
			if v != nil {
				nonNull[col]++
			}
		}
	}
	sort.Strings(names)

	rep := &Report{RowsSampled: len(rows), RowsSkipped: skipped}
	for _, n := range names {
		rep.Columns = append(rep.Columns, ColumnStat{Name: n, NonNull: nonNull[n]})
	}

	if len(opt.Schema.Tables()) > 0 {
		have := map[string]bool{}
		for _, n := range names {
			have[n] = true
		}
		seen := map[string]bool{}
		for _, t := range opt.Schema.Tables() {
			for _, c := range t.Columns {
				if seen[c] || c == t.IDColumn || c == "DTUID" {
					continue
				}
				seen[c] = true
				if have[c] {
					rep.Covered = append(rep.Covered, c)
				} else {
					rep.Missing = append(rep.Missing, c)
				}
			}
		}
		sort.Strings(rep.Covered)
		sort.Strings(rep.Missing)
	}
	return rep, nil
}

// String renders the report as a readable text block.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows sampled: %d (skipped %d)\n", r.RowsSampled, r.RowsSkipped)
	for _, c := range r.Columns {
		fmt.Fprintf(&b, "  %-32s non_null=%d/%d\n", c.Name, c.NonNull, r.RowsSampled)
	}
	if len(r.Covered)+len(r.Missing) > 0 {
		fmt.Fprintf(&b, "schema columns covered: %d\n", len(r.Covered))
		if len(r.Missing) > 0 {
			fmt.Fprintf(&b, "schema columns missing from this extract:\n")
			for _, c := range r.Missing {
				fmt.Fprintf(&b, "  %s\n", c)
			}
		}
	}
	return b.String()
}
