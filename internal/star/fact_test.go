package star

import (
	"testing"

	"crashdw/pkg/records"
)

// Two people in the same clear-weather crash share one weather row and one
// weather id; the fact table carries one row per person.
func TestPopulateFactSharedDimensionRow(t *testing.T) {
	s := DefaultSchema()
	weather, _ := s.Dimension("WeatherDimension")

	merged := []records.Record{
		{
			"PERSON_ID": "P1", "RD_NO": "A1", "VEHICLE_ID": "V1", "CRASH_UNIT_ID": "10",
			"WEATHER_CONDITION": "CLEAR", "LIGHTING_CONDITION": "DAYLIGHT",
			"DAMAGE": "OVER $1,500", "NUM_UNITS": "2",
		},
		{
			"PERSON_ID": "P2", "RD_NO": "A1", "VEHICLE_ID": "V1", "CRASH_UNIT_ID": "10",
			"WEATHER_CONDITION": "CLEAR", "LIGHTING_CONDITION": "DAYLIGHT",
			"DAMAGE": "$500 OR LESS", "NUM_UNITS": "2",
		},
	}

	wa, err := NewAssigner(weather)
	if err != nil {
		t.Fatal(err)
	}
	dim := wa.Assign(ProjectAll(merged, weather))
	if len(dim) != 1 || dim[0]["WeatherID"] != 1 {
		t.Fatalf("weather dimension = %v, want single row with id 1", dim)
	}

	facts, stats := PopulateFact(merged, s, map[string]*Assigner{"WeatherDimension": wa})
	if len(facts) != 2 || stats.Rows != 2 {
		t.Fatalf("fact rows = %d", len(facts))
	}
	for i, fr := range facts {
		if fr["DTUID"] != i+1 {
			t.Fatalf("row %d DTUID = %v", i, fr["DTUID"])
		}
		if fr["WeatherID"] != 1 {
			t.Fatalf("row %d WeatherID = %v, want 1", i, fr["WeatherID"])
		}
	}
	if facts[0]["PERSON_ID"] != "P1" || facts[1]["PERSON_ID"] != "P2" {
		t.Fatalf("natural keys lost: %v", facts)
	}
	if facts[0]["DAMAGE"] != "OVER $1,500" {
		t.Fatalf("measure lost: %v", facts[0])
	}
}

func TestPopulateFactCountsSurrogateMisses(t *testing.T) {
	s := DefaultSchema()
	weather, _ := s.Dimension("WeatherDimension")
	wa, err := NewAssigner(weather)
	if err != nil {
		t.Fatal(err)
	}
	// The assigner never saw this tuple.
	merged := []records.Record{{"PERSON_ID": "P1", "WEATHER_CONDITION": "FOG"}}

	facts, stats := PopulateFact(merged, s, map[string]*Assigner{"WeatherDimension": wa})
	if facts[0]["WeatherID"] != nil {
		t.Fatalf("missed id must be null, got %v", facts[0]["WeatherID"])
	}
	if stats.SurrogateMisses["WeatherDimension"] != 1 {
		t.Fatalf("misses = %v", stats.SurrogateMisses)
	}
	// Dimensions with no assigner at all are also misses, not panics.
	if stats.SurrogateMisses["DateDimension"] != 1 {
		t.Fatalf("absent assigner not counted: %v", stats.SurrogateMisses)
	}
}

func TestPopulateFactNeverDropsRows(t *testing.T) {
	s := DefaultSchema()
	merged := make([]records.Record, 5)
	for i := range merged {
		merged[i] = records.Record{}
	}
	facts, _ := PopulateFact(merged, s, nil)
	if len(facts) != len(merged) {
		t.Fatalf("fact rows = %d, want %d", len(facts), len(merged))
	}
}
