package metrics

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type capture struct {
	counters map[string]float64
	labels   map[string]Labels
	observed map[string]float64
	flushed  int
}

func newCapture() *capture {
	return &capture{
		counters: map[string]float64{},
		labels:   map[string]Labels{},
		observed: map[string]float64{},
	}
}

func (c *capture) IncCounter(name string, delta float64, labels Labels) {
	c.counters[name] += delta
	c.labels[name] = labels
}

func (c *capture) ObserveHistogram(name string, value float64, labels Labels) {
	c.observed[name] = value
	c.labels[name] = labels
}

func (c *capture) Flush() error { c.flushed++; return nil }

func withBackend(t *testing.T, b Backend) {
	t.Helper()
	prev := backend
	SetBackend(b)
	t.Cleanup(func() { backend = prev })
}

func TestRecordStage(t *testing.T) {
	c := newCapture()
	withBackend(t, c)

	RecordStage("chicago", "merge", nil, 2*time.Second)
	if c.counters["crashdw_stage_total"] != 1 {
		t.Fatalf("counters = %v", c.counters)
	}
	if c.observed["crashdw_stage_duration_seconds"] != 2 {
		t.Fatalf("observed = %v", c.observed)
	}
	want := Labels{"job": "chicago", "stage": "merge", "status": "success"}
	if !reflect.DeepEqual(c.labels["crashdw_stage_total"], want) {
		t.Fatalf("labels = %v", c.labels["crashdw_stage_total"])
	}

	RecordStage("chicago", "load", errors.New("boom"), time.Second)
	if c.labels["crashdw_stage_total"]["status"] != "failure" {
		t.Fatalf("labels = %v", c.labels["crashdw_stage_total"])
	}
}

func TestRecordRowsSkipsNonPositive(t *testing.T) {
	c := newCapture()
	withBackend(t, c)

	RecordRows("chicago", "merged", 0)
	RecordRows("chicago", "merged", -5)
	if len(c.counters) != 0 {
		t.Fatalf("counters = %v", c.counters)
	}
	RecordRows("chicago", "merged", 7)
	if c.counters["crashdw_rows_total"] != 7 {
		t.Fatalf("counters = %v", c.counters)
	}
}

func TestRecordTableLoad(t *testing.T) {
	c := newCapture()
	withBackend(t, c)

	RecordTableLoad("chicago", "WeatherDimension", 42)
	if c.counters["crashdw_table_rows_loaded_total"] != 42 {
		t.Fatalf("counters = %v", c.counters)
	}
	if c.labels["crashdw_table_rows_loaded_total"]["table"] != "WeatherDimension" {
		t.Fatalf("labels = %v", c.labels)
	}
}

func TestNopBackendIsSafe(t *testing.T) {
	prev := backend
	backend = nopBackend{}
	defer func() { backend = prev }()

	RecordStage("j", "s", nil, time.Second)
	RecordRows("j", "k", 1)
	if err := Flush(); err != nil {
		t.Fatal(err)
	}
	// SetBackend(nil) must not clobber the installed backend.
	SetBackend(nil)
	if backend == nil {
		t.Fatal("backend lost")
	}
}
