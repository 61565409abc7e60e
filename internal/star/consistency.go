package star

import (
	"fmt"

	"crashdw/internal/index"
	"crashdw/pkg/records"
)

// Finding is one consistency observation. Severity is "warn" or "error";
// findings never gate the run, they only shape the exit summary.
type Finding struct {
	Severity string
	Table    string
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Table, f.Message)
}

// Report is the post-run consistency check result.
type Report struct {
	RowCounts map[string]int
	Findings  []Finding
}

// Errors counts error-severity findings.
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == "error" {
			n++
		}
	}
	return n
}

func (r *Report) warnf(table, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: "warn", Table: table, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) errorf(table, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: "error", Table: table, Message: fmt.Sprintf(format, args...)})
}

// Check audits the built star set: dense surrogate ids on synthetic
// dimensions, unique natural keys on natural dimensions, and fact rows whose
// id columns resolve to existing dimension rows. It reads the finished tables
// only and never mutates them.
func Check(s Schema, tables map[string][]records.Record) *Report {
	rep := &Report{RowCounts: map[string]int{}}
	for name, rows := range tables {
		rep.RowCounts[name] = len(rows)
	}

	dimIDs := map[string]map[int]bool{}
	for _, d := range s.Dimensions {
		rows := tables[d.Name]
		if d.Synthetic() {
			ids := make(map[int]bool, len(rows))
			for _, row := range rows {
				id, ok := row[d.IDColumn].(int)
				if !ok {
					rep.errorf(d.Name, "row without integer %s: %v", d.IDColumn, row[d.IDColumn])
					continue
				}
				if ids[id] {
					rep.errorf(d.Name, "duplicate id %d", id)
				}
				ids[id] = true
			}
			for want := 1; want <= len(rows); want++ {
				if !ids[want] {
					rep.errorf(d.Name, "id sequence has a hole at %d (rows=%d)", want, len(rows))
					break
				}
			}
			dimIDs[d.Name] = ids
			continue
		}
		seen := make(map[string]bool, len(rows))
		for _, row := range rows {
			k := index.KeyOf(row, d.NaturalKey)
			if seen[k] {
				rep.errorf(d.Name, "duplicate natural key %q", k)
			}
			seen[k] = true
		}
	}

	facts := tables[s.Fact.Name]
	for _, d := range s.SyntheticDimensions() {
		ids := dimIDs[d.Name]
		misses, nulls := 0, 0
		for _, fr := range facts {
			v := fr[d.IDColumn]
			if v == nil {
				nulls++
				continue
			}
			id, ok := v.(int)
			if !ok || !ids[id] {
				misses++
			}
		}
		if misses > 0 {
			rep.errorf(s.Fact.Name, "%d rows reference missing %s", misses, d.IDColumn)
		}
		if nulls > 0 {
			rep.warnf(s.Fact.Name, "%d rows carry null %s", nulls, d.IDColumn)
		}
	}
	return rep
}
