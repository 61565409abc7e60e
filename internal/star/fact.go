package star

import (
	"crashdw/pkg/records"
)

// factIDColumn is the fact table's own sequential row id.
const factIDColumn = "DTUID"

// FactStats accounts for the fact-population pass.
type FactStats struct {
	Rows int

	// SurrogateMisses counts fact rows whose dimension tuple was never seen
	// by the dimension's assigner, keyed by dimension name. A non-zero count
	// points at a projection/assignment ordering bug, not at source data.
	SurrogateMisses map[string]int
}

// PopulateFact builds one fact row per merged row, in order. Natural key and
// measure columns are projected straight from the merged row; each synthetic
// dimension's id column is resolved through that dimension's assigner. DTUID
// is a dense 1..N sequence over the emitted rows.
//
// A surrogate miss leaves the id column null and is counted; population never
// drops a row, so fact row count always equals merged row count.
func PopulateFact(merged []records.Record, s Schema, assigners map[string]*Assigner) ([]records.Record, *FactStats) {
	stats := &FactStats{SurrogateMisses: map[string]int{}}
	dims := s.SyntheticDimensions()

	out := make([]records.Record, 0, len(merged))
	for i, row := range merged {
		fr := Project(row, s.Fact)
		fr[factIDColumn] = i + 1
		for _, d := range dims {
			a := assigners[d.Name]
			if a == nil {
				fr[d.IDColumn] = nil
				stats.SurrogateMisses[d.Name]++
				continue
			}
			if id, ok := a.IDFor(row); ok {
				fr[d.IDColumn] = id
			} else {
				fr[d.IDColumn] = nil
				stats.SurrogateMisses[d.Name]++
			}
		}
		out = append(out, fr)
	}
	stats.Rows = len(out)
	return out, stats
}
