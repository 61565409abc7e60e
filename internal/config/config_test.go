package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const samplePipeline = `{
  "job": "chicago",
  "sources": {
    "crashes":  { "location": "data/crashes.csv", "options": { "trim_space": true } },
    "people":   { "location": "data/people.csv" },
    "vehicles": { "location": "data/vehicles.csv" }
  },
  "merge": { "on_missing_crash": "abort", "precedence": "person-last", "emit_without_vehicle": false, "rdno_fallback": false },
  "prededup": { "vehicles": true },
  "output": { "dir": "out" },
  "storage": { "kind": "sqlite", "dsn": "file:crash.db", "auto_create_tables": true, "batch_size": 100 },
  "runtime": { "merge_workers": 4 }
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	p, err := Load(writeConfig(t, samplePipeline))
	if err != nil {
		t.Fatal(err)
	}
	if p.Job != "chicago" || p.Sources.Crashes.Location != "data/crashes.csv" {
		t.Fatalf("pipeline = %+v", p)
	}
	if p.Merge.OnMissingCrash != "abort" || p.Merge.EmitWithoutVehicleOr(true) {
		t.Fatalf("merge = %+v", p.Merge)
	}
	if p.Merge.RDNoFallbackOr(true) {
		t.Fatal("rdno_fallback false ignored")
	}
	if !p.Sources.Crashes.Options.Bool("trim_space", false) {
		t.Fatal("options lost")
	}
	if p.Storage.BatchSize != 100 {
		t.Fatalf("batch size = %d", p.Storage.BatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("want error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CRASHDW_STORAGE_DSN", "postgresql://secret")
	t.Setenv("CRASHDW_MERGE_WORKERS", "8")
	t.Setenv("CRASHDW_BATCH_SIZE", "not-a-number")

	p, err := Load(writeConfig(t, samplePipeline))
	if err != nil {
		t.Fatal(err)
	}
	if p.Storage.DSN != "postgresql://secret" {
		t.Fatalf("dsn = %q", p.Storage.DSN)
	}
	if p.Runtime.MergeWorkers != 8 {
		t.Fatalf("merge workers = %d", p.Runtime.MergeWorkers)
	}
	// Unparseable override keeps the file value.
	if p.Storage.BatchSize != 100 {
		t.Fatalf("batch size = %d", p.Storage.BatchSize)
	}
}

func TestPrededupDefaults(t *testing.T) {
	var p PrededupConfig
	if !p.DedupeCrashes() || p.DedupeVehicles() {
		t.Fatalf("defaults: crashes=%v vehicles=%v", p.DedupeCrashes(), p.DedupeVehicles())
	}
	f := false
	p.Crashes = &f
	if p.DedupeCrashes() {
		t.Fatal("explicit false ignored")
	}
}

func TestMergeDefaults(t *testing.T) {
	var m MergeConfig
	if !m.EmitWithoutVehicleOr(true) || !m.RDNoFallbackOr(true) {
		t.Fatal("unset flags must fall back to defaults")
	}
}

func TestStarSchemaDefault(t *testing.T) {
	var p Pipeline
	if p.StarSchema().Fact.Name != "DamageToUser" {
		t.Fatalf("default schema = %+v", p.StarSchema().Fact)
	}
}

func TestOptionsTypedGetters(t *testing.T) {
	var o Options
	if err := json.Unmarshal([]byte(`{
		"comma": ";", "trim_space": true, "n": 3,
		"header_map": {"Report No": "RD_NO", "bad": 7}
	}`), &o); err != nil {
		t.Fatal(err)
	}
	if o.String("comma", ",") != ";" || o.Rune("comma", ',') != ';' {
		t.Fatal("string/rune getters")
	}
	if !o.Bool("trim_space", false) || o.Int("n", 0) != 3 {
		t.Fatal("bool/int getters")
	}
	hm := o.StringMap("header_map")
	if hm["Report No"] != "RD_NO" || len(hm) != 1 {
		t.Fatalf("header map = %v", hm)
	}
	// Defaults on absent keys.
	if o.String("missing", "d") != "d" || o.Int("missing", 9) != 9 {
		t.Fatal("defaults")
	}
}

func TestOptionsNullDecodesToEmptyMap(t *testing.T) {
	var s SourceConfig
	if err := json.Unmarshal([]byte(`{"location":"x","options":null}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Options == nil {
		t.Fatal("options must decode non-nil")
	}
}
