// Package config defines the JSON-serializable pipeline model for the
// warehouse build. It stays small and dependency-free: decoding is standard
// library only, with a light Options helper for the free-form per-source
// reader settings.
//
// Example (trimmed):
//
//	{
//	  "job": "chicago",
//	  "sources": {
//	    "crashes":  { "location": "data/crashes.csv" },
//	    "people":   { "location": "data/people.csv" },
//	    "vehicles": { "location": "data/vehicles.csv" }
//	  },
//	  "merge":   { "on_missing_crash": "skip", "precedence": "vehicle-last" },
//	  "output":  { "dir": "out" },
//	  "storage": { "kind": "postgres", "dsn": "postgresql://...", "auto_create_tables": true }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"crashdw/internal/star"
)

// Pipeline is the top-level object decoded from a pipeline file under
// configs/pipelines/*.json.
type Pipeline struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job"`

	// Sources locates the three extracts.
	Sources Sources `json:"sources"`

	// Merge controls person/crash/vehicle join behavior.
	Merge MergeConfig `json:"merge"`

	// Prededup controls the optional source-level dedup pass before indexing.
	Prededup PrededupConfig `json:"prededup"`

	// Schema optionally overrides the built-in star layout. Most deployments
	// leave it empty and get star.DefaultSchema.
	Schema *star.Schema `json:"schema,omitempty"`

	// Output configures the CSV output directory.
	Output OutputConfig `json:"output"`

	// Storage configures the optional database load. An empty kind disables
	// the load and the run stops at the CSV output.
	Storage StorageConfig `json:"storage"`

	Runtime RuntimeConfig `json:"runtime"`
}

// Sources names the three extracts feeding the star schema.
type Sources struct {
	Crashes  SourceConfig `json:"crashes"`
	People   SourceConfig `json:"people"`
	Vehicles SourceConfig `json:"vehicles"`
}

// SourceConfig locates one extract and carries its reader settings.
type SourceConfig struct {
	// Location is a local path or an http(s) URL.
	Location string `json:"location"`

	// Options is a free-form reader options bag: comma (string), trim_space
	// (bool), lazy_quotes (bool), header_map (object).
	Options Options `json:"options"`
}

// MergeConfig selects the person/crash/vehicle join policies.
type MergeConfig struct {
	// OnMissingCrash is "skip" (default) or "abort".
	OnMissingCrash string `json:"on_missing_crash"`

	// Precedence is "vehicle-last" (default) or "person-last".
	Precedence string `json:"precedence"`

	// EmitWithoutVehicle keeps person rows with no resolvable vehicle,
	// vehicle columns null. Defaults to true; JSON false is honored.
	EmitWithoutVehicle *bool `json:"emit_without_vehicle,omitempty"`

	// PersonIDPrefix is the scheme prefix stripped from person ids to derive
	// the crash-unit number. Default "P".
	PersonIDPrefix string `json:"person_id_prefix"`

	// RDNoFallback enables the last-resort strategy that takes any vehicle
	// recorded for the person's crash. Defaults to true; JSON false disables
	// the strategy entirely.
	RDNoFallback *bool `json:"rdno_fallback,omitempty"`
}

// PrededupConfig controls source-level dedup before indexing. Crash reports
// default to deduping by RD_NO; vehicle dedup is off by default because the
// vehicle dimension has its own sentinel-aware pass.
type PrededupConfig struct {
	Crashes  *bool `json:"crashes,omitempty"`
	Vehicles *bool `json:"vehicles,omitempty"`
}

// OutputConfig configures the CSV output.
type OutputConfig struct {
	// Dir receives one <Table>.csv per star table. Empty disables CSV output.
	Dir string `json:"dir"`
}

// StorageConfig configures the database load.
type StorageConfig struct {
	// Kind selects a registered backend: "postgres", "sqlite", "mssql",
	// "mysql". Empty disables the load.
	Kind string `json:"kind"`

	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// AutoCreateTables creates missing star tables before loading.
	AutoCreateTables bool `json:"auto_create_tables"`

	// BatchSize caps rows per bulk insert; 0 uses the loader default.
	BatchSize int `json:"batch_size"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// MergeWorkers shards the person merge loop; 0 picks a default.
	MergeWorkers int `json:"merge_workers"`

	// TableWorkers parallelizes per-table star builds; 0 picks a default.
	TableWorkers int `json:"table_workers"`
}

// EmitWithoutVehicleOr returns the configured flag or def when unset.
func (m MergeConfig) EmitWithoutVehicleOr(def bool) bool {
	if m.EmitWithoutVehicle == nil {
		return def
	}
	return *m.EmitWithoutVehicle
}

// RDNoFallbackOr returns the configured flag or def when unset.
func (m MergeConfig) RDNoFallbackOr(def bool) bool {
	return boolOr(m.RDNoFallback, def)
}

// boolOr resolves an optional bool against its default.
func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// DedupeCrashes reports whether the crash extract is deduped by RD_NO.
func (p PrededupConfig) DedupeCrashes() bool { return boolOr(p.Crashes, true) }

// DedupeVehicles reports whether the vehicle extract is deduped by VEHICLE_ID.
func (p PrededupConfig) DedupeVehicles() bool { return boolOr(p.Vehicles, false) }

// Load reads and decodes one pipeline file and applies environment overrides.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("config: decode %s: %w", path, err)
	}
	p.ApplyEnv()
	return p, nil
}

// ApplyEnv overlays CRASHDW_* environment variables onto the decoded
// pipeline, so deployments can keep secrets and per-host tuning out of the
// checked-in JSON.
func (p *Pipeline) ApplyEnv() {
	if v := os.Getenv("CRASHDW_STORAGE_DSN"); v != "" {
		p.Storage.DSN = v
	}
	if v := os.Getenv("CRASHDW_STORAGE_KIND"); v != "" {
		p.Storage.Kind = v
	}
	p.Storage.BatchSize = envInt("CRASHDW_BATCH_SIZE", p.Storage.BatchSize)
	p.Runtime.MergeWorkers = envInt("CRASHDW_MERGE_WORKERS", p.Runtime.MergeWorkers)
	p.Runtime.TableWorkers = envInt("CRASHDW_TABLE_WORKERS", p.Runtime.TableWorkers)
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// StarSchema returns the schema override or the default layout.
func (p Pipeline) StarSchema() star.Schema {
	if p.Schema != nil {
		return *p.Schema
	}
	return star.DefaultSchema()
}

// Options fetches typed values from free-form JSON maps without a config
// library. Minimal coercion; defaults on absent or mistyped keys.
type Options map[string]any

// String returns the string for key, or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool for key, or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int for key, or def. JSON numbers decode as float64.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of the string for key, or def. Used for the
// CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the object for key as map[string]string, ignoring
// non-string values. Empty map when absent.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON makes a missing or null options object decode to a non-nil
// empty map, so call sites skip the nil check.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
