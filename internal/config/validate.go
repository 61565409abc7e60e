package config

import (
	"fmt"
	"strings"
)

// IssueSeverity grades a validation finding.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path into the config
// (e.g. "storage.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error lets an Issue travel as a plain error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is error-severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline statically lints a decoded Pipeline without mutating it.
// Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and identifies runs",
		})
	}

	issues = append(issues, validateSource("sources.crashes", p.Sources.Crashes)...)
	issues = append(issues, validateSource("sources.people", p.Sources.People)...)
	issues = append(issues, validateSource("sources.vehicles", p.Sources.Vehicles)...)
	issues = append(issues, validateMerge(p.Merge)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	if p.Schema != nil {
		if err := p.Schema.Validate(); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "schema",
				Message:  err.Error(),
			})
		}
	}

	if p.Output.Dir == "" && p.Storage.Kind == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.dir",
			Message:  "no output dir and no storage kind; the run will produce nothing durable",
		})
	}

	return issues
}

func validateSource(path string, s SourceConfig) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Location) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".location",
			Message:  "location must not be empty",
		})
	}
	if c := s.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".options.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", c),
		})
	}
	return issues
}

func validateMerge(m MergeConfig) []Issue {
	var issues []Issue
	switch m.OnMissingCrash {
	case "", "skip", "abort":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "merge.on_missing_crash",
			Message:  fmt.Sprintf("must be \"skip\" or \"abort\", got %q", m.OnMissingCrash),
		})
	}
	switch m.Precedence {
	case "", "vehicle-last", "person-last":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "merge.precedence",
			Message:  fmt.Sprintf("must be \"vehicle-last\" or \"person-last\", got %q", m.Precedence),
		})
	}
	return issues
}

func validateStorage(s StorageConfig) []Issue {
	var issues []Issue
	if s.Kind == "" {
		return issues
	}
	known := map[string]struct{}{
		"postgres": {}, "sqlite": {}, "mssql": {}, "mysql": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "dsn must not be empty when storage.kind is set",
		})
	}
	if s.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.MergeWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.merge_workers",
			Message:  "merge_workers must not be negative",
		})
	}
	if r.TableWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.table_workers",
			Message:  "table_workers must not be negative",
		})
	}
	return issues
}
