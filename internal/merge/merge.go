// Package merge resolves each person row against its owning crash and vehicle
// rows and emits one denormalized row per person.
//
// Vehicle resolution tries an ordered list of key strategies and stops at the
// first hit; the strategy list is data, not code, so policies can be tested
// one strategy at a time. Crash resolution is an exact RD_NO match whose
// failure handling is policy-selected: skip the person row with a warning, or
// abort the whole run. Both behaviors are legitimate for this dataset and
// they produce materially different fact-table completeness, so the choice is
// explicit configuration rather than a hardcoded default.
package merge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"crashdw/internal/index"
	"crashdw/pkg/records"
)

// Column names the merger reads from person rows.
const (
	colRDNo      = "RD_NO"
	colPersonID  = "PERSON_ID"
	colVehicleID = "VEHICLE_ID"
)

// warnLimit caps per-category warning lines; everything past it is counted
// silently and reported in the summary.
const warnLimit = 3

// MissingCrashPolicy selects the behavior when a person's RD_NO has no crash.
type MissingCrashPolicy string

const (
	// MissingCrashSkip drops the person row and counts it.
	MissingCrashSkip MissingCrashPolicy = "skip"
	// MissingCrashAbort fails the whole merge on the first missing crash.
	MissingCrashAbort MissingCrashPolicy = "abort"
)

// Precedence selects which source wins overlapping column names.
type Precedence string

const (
	// VehicleLast overlays crash, then person, then vehicle (vehicle wins).
	VehicleLast Precedence = "vehicle-last"
	// PersonLast overlays crash, then vehicle, then person (person wins).
	PersonLast Precedence = "person-last"
)

// Policy bundles the behavioral knobs of a merge run.
type Policy struct {
	OnMissingCrash MissingCrashPolicy
	Precedence     Precedence

	// EmitWithoutVehicle keeps person rows whose vehicle could not be
	// resolved by any strategy (vehicle columns stay null). When false such
	// rows are dropped like missing-crash rows.
	EmitWithoutVehicle bool
}

// MissingCrashError is returned in abort mode when a person references an
// unknown crash report.
type MissingCrashError struct {
	RDNo     string
	PersonID string
}

func (e *MissingCrashError) Error() string {
	return fmt.Sprintf("merge: crash %q referenced by person %q not found", e.RDNo, e.PersonID)
}

// Strategy is one vehicle-resolution attempt: extract a key from the person
// row and probe one index. Strategies are tried in order; the first hit wins.
type Strategy struct {
	Name    string
	Resolve func(person records.Record) (records.Record, bool)
}

// UnitFromPersonID resolves the vehicle through the person's own identifier:
// the person id carries a scheme prefix (e.g. "P882") whose remainder is the
// crash-unit sequence number, paired with RD_NO against a
// (CRASH_UNIT_ID, RD_NO) index.
func UnitFromPersonID(units *index.Index, prefix string) Strategy {
	return Strategy{
		Name: "unit-from-person-id",
		Resolve: func(p records.Record) (records.Record, bool) {
			id := p.String(colPersonID)
			if prefix != "" {
				if !strings.HasPrefix(id, prefix) {
					return nil, false
				}
				id = strings.TrimPrefix(id, prefix)
			}
			if id == "" {
				return nil, false
			}
			return units.Lookup(id, p.String(colRDNo))
		},
	}
}

// ByVehicleID resolves through the person's VEHICLE_ID paired with RD_NO.
func ByVehicleID(vehicles *index.Index) Strategy {
	return Strategy{
		Name: "by-vehicle-id",
		Resolve: func(p records.Record) (records.Record, bool) {
			vid := p.String(colVehicleID)
			if vid == "" {
				return nil, false
			}
			return vehicles.Lookup(vid, p.String(colRDNo))
		},
	}
}

// AnyVehicleInCrash is the last-resort fallback: the first vehicle recorded
// for the person's crash, whichever unit it is.
func AnyVehicleInCrash(byCrash *index.MultiIndex) Strategy {
	return Strategy{
		Name: "any-vehicle-in-crash",
		Resolve: func(p records.Record) (records.Record, bool) {
			return byCrash.First(p.String(colRDNo))
		},
	}
}

// Stats carries cross-goroutine merge counters. All fields are atomics; the
// struct is shared by the merge workers and read after Merge returns.
type Stats struct {
	Merged         atomic.Int64
	CrashMissing   atomic.Int64
	VehicleMissing atomic.Int64
	NoVehicleDrops atomic.Int64

	strategyHits []atomic.Int64
	strategies   []string
}

// StrategyHits returns resolution counts keyed by strategy name.
func (s *Stats) StrategyHits() map[string]int64 {
	out := make(map[string]int64, len(s.strategies))
	for i, name := range s.strategies {
		out[name] = s.strategyHits[i].Load()
	}
	return out
}

// Merger joins person rows with crash and vehicle rows.
type Merger struct {
	Crashes    *index.Index
	Strategies []Strategy
	Policy     Policy

	// Workers shards the person loop; <=1 runs sequentially. Indices are
	// read-only during Merge, so persons are independent; output order stays
	// stable because each worker writes its own slots.
	Workers int

	// Warnf is a seam for tests; defaults to log.Printf.
	Warnf func(format string, args ...any)
}

// Merge produces one merged row per resolvable person, in input person order.
// In skip mode unresolvable persons are counted and dropped; in abort mode
// the first missing crash fails the run.
func (m *Merger) Merge(ctx context.Context, people []records.Record) ([]records.Record, *Stats, error) {
	warnf := m.Warnf
	if warnf == nil {
		warnf = log.Printf
	}
	stats := &Stats{
		strategyHits: make([]atomic.Int64, len(m.Strategies)),
		strategies:   make([]string, len(m.Strategies)),
	}
	for i, s := range m.Strategies {
		stats.strategies[i] = s.Name
	}

	slots := make([]records.Record, len(people))

	workers := m.Workers
	if workers <= 1 {
		workers = 1
	}
	if workers > len(people) {
		workers = max(len(people), 1)
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(people) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(people))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := m.mergeOne(people[i], slots, i, stats, warnf); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	out := make([]records.Record, 0, len(people))
	for _, r := range slots {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, stats, nil
}

// mergeOne resolves and merges a single person row into slots[i], or leaves
// the slot nil when the row is dropped.
func (m *Merger) mergeOne(person records.Record, slots []records.Record, i int, stats *Stats, warnf func(string, ...any)) error {
	rdNo := person.String(colRDNo)

	crash, ok := m.Crashes.Lookup(rdNo)
	if !ok {
		if m.Policy.OnMissingCrash == MissingCrashAbort {
			return &MissingCrashError{RDNo: rdNo, PersonID: person.String(colPersonID)}
		}
		if n := stats.CrashMissing.Add(1); n <= warnLimit {
			warnf("merge: no crash for RD_NO=%q (person %s); skipping", rdNo, person.String(colPersonID))
		}
		return nil
	}

	var vehicle records.Record
	for si, s := range m.Strategies {
		if v, ok := s.Resolve(person); ok {
			vehicle = v
			stats.strategyHits[si].Add(1)
			break
		}
	}
	if vehicle == nil {
		if n := stats.VehicleMissing.Add(1); n <= warnLimit {
			warnf("merge: no vehicle for person %s in RD_NO=%q", person.String(colPersonID), rdNo)
		}
		if !m.Policy.EmitWithoutVehicle {
			stats.NoVehicleDrops.Add(1)
			return nil
		}
	}

	switch m.Policy.Precedence {
	case PersonLast:
		slots[i] = records.Merge(crash, vehicle, person)
	default: // VehicleLast
		slots[i] = records.Merge(crash, person, vehicle)
	}
	stats.Merged.Add(1)
	return nil
}
