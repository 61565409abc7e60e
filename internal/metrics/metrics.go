// Package metrics is a small backend-agnostic layer for operational metrics
// from the warehouse build. The global backend defaults to a no-op, so every
// call site is safe whether or not a real backend was configured; concrete
// systems (Prometheus Pushgateway, Datadog) live in subpackages and are
// installed once at startup via SetBackend. The pattern mirrors the storage
// factory: core code depends on the interface only.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal sink interface.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration/size style observation.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes pending metrics where the backend needs it (Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Nil keeps the current one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStage measures one pipeline stage: extract, normalize, merge, star,
// write, load.
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "stage": stage, "status": status}
	backend.IncCounter("crashdw_stage_total", 1, lbls)
	backend.ObserveHistogram("crashdw_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-accounting counter for the given kind.
//
// Kinds mirror the run summary fields:
//   - "people", "crashes", "vehicles" (rows read per extract)
//   - "merged"
//   - "crash_missing", "vehicle_missing"
//   - "dedup_dropped"
//   - "fact_rows", "surrogate_miss"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("crashdw_rows_total", float64(delta), Labels{"job": job, "kind": kind})
}

// RecordTableLoad counts rows landed in one warehouse table.
func RecordTableLoad(job, table string, rows int64) {
	if rows <= 0 {
		return
	}
	backend.IncCounter("crashdw_table_rows_loaded_total", float64(rows), Labels{"job": job, "table": table})
}
