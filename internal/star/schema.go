// Package star turns merged wide rows into the star-schema tables: eight
// dimensions around one damage fact table. It owns the declarative schema
// model, per-table projection, surrogate-key assignment, deduplication, fact
// population, and the post-run consistency report.
package star

import (
	"fmt"
	"strings"
)

// Table declares one output table: its name, ordered column list, and keying
// behavior. The column list is authoritative for projection, tuple equality,
// and CSV/DB column order.
type Table struct {
	// Name is the output table name, e.g. "WeatherDimension".
	Name string `json:"name"`

	// Columns is the ordered output column list, including the id column.
	Columns []string `json:"columns"`

	// IDColumn names the synthetic surrogate-id column for synthetically
	// keyed dimensions (DateID, WeatherID, ...). Empty for naturally keyed
	// tables and for the fact table's own id.
	IDColumn string `json:"id_column,omitempty"`

	// NaturalKey lists the dedupe key columns of a naturally keyed dimension
	// (e.g. PERSON_ID). Empty for synthetically keyed tables.
	NaturalKey []string `json:"natural_key,omitempty"`

	// DropWhenEmpty drops projected rows whose every column is null. Used for
	// the vehicle dimension, where a person without a vehicle would otherwise
	// contribute a garbage all-null row.
	DropWhenEmpty bool `json:"drop_when_empty,omitempty"`

	// SentinelDedupe selects the sentinel-aware vehicle dedupe: rows whose
	// VEHICLE_ID is "-1" or absent key by (RD_NO, CRASH_UNIT_ID) instead of
	// the natural key. Survives schema overrides that rename the table.
	SentinelDedupe bool `json:"sentinel_dedupe,omitempty"`
}

// Synthetic reports whether the table's key is assigned by content
// deduplication rather than taken from the source data.
func (t Table) Synthetic() bool { return t.IDColumn != "" }

// KeyColumns returns the columns forming the content tuple of a synthetically
// keyed table: every declared column except the id column, in declared order.
func (t Table) KeyColumns() []string {
	if t.IDColumn == "" {
		return t.Columns
	}
	out := make([]string, 0, len(t.Columns)-1)
	for _, c := range t.Columns {
		if c != t.IDColumn {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether col is declared on the table.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Schema is the full star layout: the fact table plus its dimensions, in load
// order (dimensions load before the fact table).
type Schema struct {
	Fact       Table   `json:"fact"`
	Dimensions []Table `json:"dimensions"`
}

// Tables returns all tables in referential-integrity load order.
func (s Schema) Tables() []Table {
	out := make([]Table, 0, len(s.Dimensions)+1)
	out = append(out, s.Dimensions...)
	out = append(out, s.Fact)
	return out
}

// Dimension returns the dimension with the given name.
func (s Schema) Dimension(name string) (Table, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Table{}, false
}

// SyntheticDimensions returns the dimensions whose ids the assigner generates.
func (s Schema) SyntheticDimensions() []Table {
	var out []Table
	for _, d := range s.Dimensions {
		if d.Synthetic() {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the schema is internally consistent: non-empty tables,
// unique table names, id/natural-key columns declared on their tables, and
// every synthetic dimension id referenced by the fact table actually exists.
// Validation runs at config load time so projection and assignment can trust
// the schema unconditionally.
func (s Schema) Validate() error {
	seen := map[string]bool{}
	for _, t := range s.Tables() {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("star: table with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("star: duplicate table %q", t.Name)
		}
		seen[t.Name] = true
		if len(t.Columns) == 0 {
			return fmt.Errorf("star: table %q declares no columns", t.Name)
		}
		cols := map[string]bool{}
		for _, c := range t.Columns {
			if cols[c] {
				return fmt.Errorf("star: table %q declares column %q twice", t.Name, c)
			}
			cols[c] = true
		}
		if t.IDColumn != "" && !t.HasColumn(t.IDColumn) {
			return fmt.Errorf("star: table %q id column %q not in columns", t.Name, t.IDColumn)
		}
		if t.IDColumn != "" && len(t.NaturalKey) > 0 {
			return fmt.Errorf("star: table %q declares both id column and natural key", t.Name)
		}
		for _, k := range t.NaturalKey {
			if !t.HasColumn(k) {
				return fmt.Errorf("star: table %q natural key %q not in columns", t.Name, k)
			}
		}
	}
	for _, d := range s.SyntheticDimensions() {
		if !s.Fact.HasColumn(d.IDColumn) {
			return fmt.Errorf("star: fact table %q missing id column %q of dimension %q",
				s.Fact.Name, d.IDColumn, d.Name)
		}
	}
	return nil
}

// DefaultSchema returns the crash star schema: the DamageToUser fact table
// and its eight dimensions.
func DefaultSchema() Schema {
	return Schema{
		Fact: Table{
			Name: "DamageToUser",
			Columns: []string{
				"DTUID", "PERSON_ID", "RD_NO", "VEHICLE_ID", "CRASH_UNIT_ID",
				"DateID", "LocationID", "WeatherID", "InjuryID", "CauseID",
				"DAMAGE", "NUM_UNITS",
			},
		},
		Dimensions: []Table{
			{
				Name: "DateDimension",
				Columns: []string{
					"DateID", "CRASH_DATE", "YEAR", "QUARTER", "CRASH_MONTH",
					"DAY", "CRASH_DAY_OF_WEEK", "CRASH_HOUR", "MINUTE",
				},
				IDColumn: "DateID",
			},
			{
				Name: "PersonDimension",
				Columns: []string{
					"PERSON_ID", "CITY", "STATE", "SEX", "AGE", "PERSON_TYPE",
					"UNIT_NO", "UNIT_TYPE", "DAMAGE_CATEGORY", "PHYSICAL_CONDITION",
					"INJURY_CLASSIFICATION", "BAC_RESULT", "EJECTION",
				},
				NaturalKey: []string{"PERSON_ID"},
			},
			{
				Name: "VehicleDimension",
				Columns: []string{
					"CRASH_UNIT_ID", "VEHICLE_ID", "RD_NO", "MAKE", "MODEL",
					"VEHICLE_YEAR", "VEHICLE_TYPE", "VEHICLE_DEFECT", "VEHICLE_USE",
					"SAFETY_EQUIPMENT", "AIRBAG_DEPLOYED", "LIC_PLATE_STATE",
					"TRAVEL_DIRECTION", "MANEUVER", "OCCUPANT_CNT", "FIRST_CONTACT_POINT",
				},
				NaturalKey:     []string{"VEHICLE_ID"},
				DropWhenEmpty:  true,
				SentinelDedupe: true,
			},
			{
				Name: "CrashReportDimension",
				Columns: []string{
					"RD_NO", "REPORT_TYPE", "DATE_POLICE_NOTIFIED",
					"BEAT_OF_OCCURRENCE", "CRASH_TYPE", "FIRST_CRASH_TYPE",
				},
				NaturalKey: []string{"RD_NO"},
			},
			{
				Name: "LocationDimension",
				Columns: []string{
					"LocationID", "LOCATION", "LATITUDE", "LONGITUDE", "STREET_NO",
					"STREET_NAME", "STREET_DIRECTION", "H3", "TRAFFIC_CONTROL_DEVICE",
					"TRAFFICWAY_TYPE", "ROADWAY_SURFACE_COND", "ROAD_DEFECT",
					"POSTED_SPEED_LIMIT", "DEVICE_CONDITION", "ALIGNMENT",
				},
				IDColumn: "LocationID",
			},
			{
				Name:     "WeatherDimension",
				Columns:  []string{"WeatherID", "WEATHER_CONDITION", "LIGHTING_CONDITION"},
				IDColumn: "WeatherID",
			},
			{
				Name: "InjuryDimension",
				Columns: []string{
					"InjuryID", "MOST_SEVERE_INJURY", "INJURIES_TOTAL", "INJURIES_FATAL",
					"INJURIES_NON_INCAPACITATING", "INJURIES_INCAPACITATING",
					"INJURIES_UNKNOWN", "INJURIES_NO_INDICATION",
					"INJURIES_REPORTED_NOT_EVIDENT",
				},
				IDColumn: "InjuryID",
			},
			{
				Name: "CauseDimension",
				Columns: []string{
					"CauseID", "PRIM_CONTRIBUTORY_CAUSE", "SEC_CONTRIBUTORY_CAUSE",
					"DRIVER_ACTION", "DRIVER_VISION",
				},
				IDColumn: "CauseID",
			},
		},
	}
}
