package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crashdw/internal/config"
	"crashdw/internal/datasource"
	"crashdw/internal/index"
	"crashdw/internal/merge"
	"crashdw/internal/metrics"
	"crashdw/internal/normalize"
	"crashdw/internal/star"
	"crashdw/internal/storage"
	"crashdw/internal/tabio"
	"crashdw/pkg/records"
)

const (
	defaultMergeWorkers = 4
	defaultTableWorkers = 4
	errAggLimit         = 5
)

// Join-key columns normalized per extract before any index is built.
var (
	crashKeyCols   = []string{"RD_NO"}
	personKeyCols  = []string{"RD_NO", "PERSON_ID", "VEHICLE_ID"}
	vehicleKeyCols = []string{"RD_NO", "VEHICLE_ID", "CRASH_UNIT_ID"}
)

// newSource is a test seam; points at datasource.New by default.
var newSource = datasource.New

// run executes the whole build: extract, normalize, merge, star, write, load.
func run(ctx context.Context, p config.Pipeline, verbose bool) error {
	s := p.StarSchema()
	if err := s.Validate(); err != nil {
		return err
	}
	job := p.Job

	// Extract. The three files are independent; read them in parallel.
	readAgg := newErrAgg(errAggLimit)
	var crashes, people, vehicles []records.Record
	extractStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		crashes, err = readExtract(gctx, "crashes", p.Sources.Crashes, readAgg)
		return err
	})
	g.Go(func() (err error) {
		people, err = readExtract(gctx, "people", p.Sources.People, readAgg)
		return err
	})
	g.Go(func() (err error) {
		vehicles, err = readExtract(gctx, "vehicles", p.Sources.Vehicles, readAgg)
		return err
	})
	err := g.Wait()
	metrics.RecordStage(job, "extract", err, time.Since(extractStart))
	if err != nil {
		return err
	}
	readAgg.logSummary("extract")
	metrics.RecordRows(job, "crashes", int64(len(crashes)))
	metrics.RecordRows(job, "people", int64(len(people)))
	metrics.RecordRows(job, "vehicles", int64(len(vehicles)))
	log.Printf("extract: crashes=%d people=%d vehicles=%d", len(crashes), len(people), len(vehicles))

	// Normalize join keys so the same identifier always compares equal.
	normStart := time.Now()
	normalize.All(crashes, crashKeyCols)
	normalize.All(people, personKeyCols)
	normalize.All(vehicles, vehicleKeyCols)
	metrics.RecordStage(job, "normalize", nil, time.Since(normStart))

	// Source-level pre-dedup, where configured.
	if p.Prededup.DedupeCrashes() {
		var dropped int
		crashes, dropped = star.DedupeByKey(crashes, crashKeyCols)
		if dropped > 0 {
			log.Printf("prededup: dropped %d duplicate crash rows", dropped)
			metrics.RecordRows(job, "dedup_dropped", int64(dropped))
		}
	}
	if p.Prededup.DedupeVehicles() {
		var dropped int
		vehicles, dropped = star.DedupeByKey(vehicles, []string{"VEHICLE_ID"})
		if dropped > 0 {
			log.Printf("prededup: dropped %d duplicate vehicle rows", dropped)
			metrics.RecordRows(job, "dedup_dropped", int64(dropped))
		}
	}

	// Merge people against crashes and vehicles.
	mergeStart := time.Now()
	merged, mstats, err := mergeExtracts(ctx, p, crashes, people, vehicles)
	metrics.RecordStage(job, "merge", err, time.Since(mergeStart))
	if err != nil {
		return err
	}
	metrics.RecordRows(job, "merged", mstats.Merged.Load())
	metrics.RecordRows(job, "crash_missing", mstats.CrashMissing.Load())
	metrics.RecordRows(job, "vehicle_missing", mstats.VehicleMissing.Load())
	logMergeSummary(len(people), merged, mstats, verbose)

	// Build the star tables.
	starStart := time.Now()
	tables, assigners, err := buildDimensions(ctx, p, s, merged)
	if err != nil {
		metrics.RecordStage(job, "star", err, time.Since(starStart))
		return err
	}
	facts, fstats := star.PopulateFact(merged, s, assigners)
	tables[s.Fact.Name] = facts
	metrics.RecordStage(job, "star", nil, time.Since(starStart))
	metrics.RecordRows(job, "fact_rows", int64(fstats.Rows))
	for dim, n := range fstats.SurrogateMisses {
		log.Printf("fact: %d rows missing %s surrogate id", n, dim)
		metrics.RecordRows(job, "surrogate_miss", int64(n))
	}

	// Consistency report. Findings never gate the run.
	report := star.Check(s, tables)
	for _, f := range report.Findings {
		log.Printf("consistency: %s", f)
	}
	logTableCounts(report.RowCounts)

	// CSV output.
	if p.Output.Dir != "" {
		writeStart := time.Now()
		err := writeTables(p.Output.Dir, s, tables)
		metrics.RecordStage(job, "write", err, time.Since(writeStart))
		if err != nil {
			return err
		}
		log.Printf("write: %d tables under %s", len(tables), p.Output.Dir)
	}

	// Database load.
	if p.Storage.Kind != "" {
		loadStart := time.Now()
		err := loadTables(ctx, p, s, tables)
		metrics.RecordStage(job, "load", err, time.Since(loadStart))
		if err != nil {
			return err
		}
	}
	return nil
}

// readExtract opens one source and parses it into records.
func readExtract(ctx context.Context, name string, sc config.SourceConfig, agg *errAgg) ([]records.Record, error) {
	src, err := newSource(sc.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer rc.Close()

	rows, skipped, err := tabio.Read(rc, tabio.ReadOptions{
		Comma:      sc.Options.Rune("comma", ','),
		TrimSpace:  sc.Options.Bool("trim_space", true),
		LazyQuotes: sc.Options.Bool("lazy_quotes", false),
		HeaderMap:  sc.Options.StringMap("header_map"),
		OnErr: func(line int, err error) {
			agg.add(fmt.Sprintf("%s row %d: %v", name, line, err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if skipped > 0 {
		log.Printf("extract: %s skipped %d malformed rows", name, skipped)
	}
	return rows, nil
}

// mergeExtracts indexes the crash and vehicle rows and joins every person row
// through the fallback chain.
func mergeExtracts(ctx context.Context, p config.Pipeline, crashes, people, vehicles []records.Record) ([]records.Record, *merge.Stats, error) {
	crashIdx := index.Build(crashes, crashKeyCols...)
	if crashIdx.Collisions > 0 {
		log.Printf("merge: crash index overwrote %d duplicate RD_NO rows", crashIdx.Collisions)
	}

	rdnoFallback := p.Merge.RDNoFallbackOr(true)
	var unitIdx, vehIdx *index.Index
	var byCrash *index.MultiIndex
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { unitIdx = index.Build(vehicles, "CRASH_UNIT_ID", "RD_NO"); return nil })
	g.Go(func() error { vehIdx = index.Build(vehicles, "VEHICLE_ID", "RD_NO"); return nil })
	if rdnoFallback {
		g.Go(func() error { byCrash = index.BuildMulti(vehicles, "RD_NO"); return nil })
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	prefix := p.Merge.PersonIDPrefix
	if prefix == "" {
		prefix = "P"
	}
	workers := p.Runtime.MergeWorkers
	if workers == 0 {
		workers = defaultMergeWorkers
	}

	strategies := []merge.Strategy{
		merge.UnitFromPersonID(unitIdx, prefix),
		merge.ByVehicleID(vehIdx),
	}
	if rdnoFallback {
		strategies = append(strategies, merge.AnyVehicleInCrash(byCrash))
	}

	m := &merge.Merger{
		Crashes:    crashIdx,
		Strategies: strategies,
		Policy: merge.Policy{
			OnMissingCrash:     merge.MissingCrashPolicy(orDefault(p.Merge.OnMissingCrash, string(merge.MissingCrashSkip))),
			Precedence:         merge.Precedence(orDefault(p.Merge.Precedence, string(merge.VehicleLast))),
			EmitWithoutVehicle: p.Merge.EmitWithoutVehicleOr(true),
		},
		Workers: workers,
	}
	return m.Merge(ctx, people)
}

// buildDimensions projects and dedupes every dimension from the merged rows,
// one goroutine per table. Returns the built tables and the assigners the
// fact populator resolves ids through.
func buildDimensions(ctx context.Context, p config.Pipeline, s star.Schema, merged []records.Record) (map[string][]records.Record, map[string]*star.Assigner, error) {
	workers := p.Runtime.TableWorkers
	if workers == 0 {
		workers = defaultTableWorkers
	}

	var mu sync.Mutex
	tables := make(map[string][]records.Record, len(s.Dimensions)+1)
	assigners := make(map[string]*star.Assigner, len(s.Dimensions))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, d := range s.Dimensions {
		g.Go(func() error {
			rows, a, err := buildDimension(d, merged)
			if err != nil {
				return err
			}
			mu.Lock()
			tables[d.Name] = rows
			if a != nil {
				assigners[d.Name] = a
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return tables, assigners, nil
}

// buildDimension builds one dimension table from the merged rows. Synthetic
// dimensions dedupe by content tuple through an assigner; natural dimensions
// dedupe by their key, or with the sentinel-aware vehicle pass when the table
// declares it.
func buildDimension(d star.Table, merged []records.Record) ([]records.Record, *star.Assigner, error) {
	projected := star.ProjectAll(merged, d)
	if d.DropWhenEmpty {
		projected = star.FilterEmpty(projected, d)
	}

	if d.Synthetic() {
		a, err := star.NewAssigner(d)
		if err != nil {
			return nil, nil, err
		}
		return a.Assign(projected), a, nil
	}

	if d.SentinelDedupe {
		rows, _ := star.DedupeVehicleRows(projected)
		return rows, nil, nil
	}
	rows, _ := star.DedupeByKey(projected, d.NaturalKey)
	return rows, nil, nil
}

// writeTables writes one <Table>.csv per star table into dir.
func writeTables(dir string, s star.Schema, tables map[string][]records.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	for _, t := range s.Tables() {
		rows, ok := tables[t.Name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, t.Name+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := tabio.WriteTable(f, t, rows); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	}
	return nil
}

// loadTables opens the configured backend and loads dimensions, then the
// fact table.
func loadTables(ctx context.Context, p config.Pipeline, s star.Schema, tables map[string][]records.Record) error {
	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	if p.Storage.AutoCreateTables {
		if err := storage.EnsureTables(ctx, repo, p.Storage.Kind, s); err != nil {
			return err
		}
	}
	counts, err := storage.LoadStar(ctx, repo, s, tables, p.Storage.BatchSize)
	for table, n := range counts {
		metrics.RecordTableLoad(p.Job, table, n)
	}
	if err != nil {
		return err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	log.Printf("load: %d rows across %d tables into %s", total, len(counts), p.Storage.Kind)
	return nil
}

// logMergeSummary prints the row accounting for the merge stage. Every input
// person row is accounted for: merged, dropped for a missing crash, or
// dropped for a missing vehicle.
func logMergeSummary(peopleIn int, merged []records.Record, st *merge.Stats, verbose bool) {
	log.Printf("merge: people_in=%d merged=%d crash_missing=%d vehicle_missing=%d no_vehicle_drops=%d",
		peopleIn, len(merged), st.CrashMissing.Load(), st.VehicleMissing.Load(), st.NoVehicleDrops.Load())
	if accounted := int64(len(merged)) + st.CrashMissing.Load() + st.NoVehicleDrops.Load(); accounted != int64(peopleIn) {
		log.Printf("merge: row accounting mismatch: in=%d accounted=%d", peopleIn, accounted)
	}
	if verbose {
		for name, hits := range st.StrategyHits() {
			log.Printf("merge: strategy %s resolved %d rows", name, hits)
		}
	}
}

// logTableCounts prints final table sizes in a stable order.
func logTableCounts(counts map[string]int) {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		log.Printf("star: %s rows=%d", n, counts[n])
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// errAgg aggregates row-level error messages: the first few verbatim, the
// rest counted per message bucket.
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) logSummary(stage string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	for _, msg := range a.first {
		log.Printf("%s: %s", stage, msg)
	}
	if rest := a.count - len(a.first); rest > 0 {
		log.Printf("%s: %d further row errors suppressed", stage, rest)
	}
}
