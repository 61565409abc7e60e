package star

import (
	"reflect"
	"testing"

	"crashdw/pkg/records"
)

func weatherTable(t *testing.T) Table {
	t.Helper()
	d, ok := DefaultSchema().Dimension("WeatherDimension")
	if !ok {
		t.Fatal("WeatherDimension not in default schema")
	}
	return d
}

func TestAssignerDenseFirstSeenIDs(t *testing.T) {
	a, err := NewAssigner(weatherTable(t))
	if err != nil {
		t.Fatal(err)
	}
	rows := []records.Record{
		{"WeatherID": nil, "WEATHER_CONDITION": "CLEAR", "LIGHTING_CONDITION": "DAYLIGHT"},
		{"WeatherID": nil, "WEATHER_CONDITION": "RAIN", "LIGHTING_CONDITION": "DARKNESS"},
		{"WeatherID": nil, "WEATHER_CONDITION": "CLEAR", "LIGHTING_CONDITION": "DAYLIGHT"},
		{"WeatherID": nil, "WEATHER_CONDITION": "SNOW", "LIGHTING_CONDITION": "DAYLIGHT"},
	}
	out := a.Assign(rows)
	if len(out) != 3 {
		t.Fatalf("kept %d rows, want 3", len(out))
	}
	for i, r := range out {
		if r["WeatherID"] != i+1 {
			t.Fatalf("row %d id = %v, want %d", i, r["WeatherID"], i+1)
		}
	}
	if a.Len() != 3 {
		t.Fatalf("Len = %d", a.Len())
	}
}

func TestAssignerIDForResolvesFromWideRow(t *testing.T) {
	a, err := NewAssigner(weatherTable(t))
	if err != nil {
		t.Fatal(err)
	}
	a.Assign([]records.Record{
		{"WeatherID": nil, "WEATHER_CONDITION": "CLEAR", "LIGHTING_CONDITION": "DAYLIGHT"},
	})

	// A merged row carries many extra columns and no explicit WeatherID key;
	// only the dimension's key columns matter.
	wide := records.Record{
		"RD_NO":              "A1",
		"WEATHER_CONDITION":  "CLEAR",
		"LIGHTING_CONDITION": "DAYLIGHT",
		"MAKE":               "FORD",
	}
	id, ok := a.IDFor(wide)
	if !ok || id != 1 {
		t.Fatalf("IDFor = %d, %v", id, ok)
	}
	if _, ok := a.IDFor(records.Record{"WEATHER_CONDITION": "FOG"}); ok {
		t.Fatal("unseen tuple must miss")
	}
}

func TestAssignerNullAndEmptyAreDistinctTuples(t *testing.T) {
	a, err := NewAssigner(weatherTable(t))
	if err != nil {
		t.Fatal(err)
	}
	out := a.Assign([]records.Record{
		{"WeatherID": nil, "WEATHER_CONDITION": nil, "LIGHTING_CONDITION": "DAYLIGHT"},
		{"WeatherID": nil, "WEATHER_CONDITION": "", "LIGHTING_CONDITION": "DAYLIGHT"},
	})
	if len(out) != 2 {
		t.Fatalf("null and empty collapsed: kept %d rows", len(out))
	}
}

func TestAssignerRepeatTuplesResolveToFirstID(t *testing.T) {
	a, err := NewAssigner(weatherTable(t))
	if err != nil {
		t.Fatal(err)
	}
	rows := []records.Record{
		{"WeatherID": nil, "WEATHER_CONDITION": "CLEAR", "LIGHTING_CONDITION": "DAYLIGHT"},
		{"WeatherID": nil, "WEATHER_CONDITION": "RAIN", "LIGHTING_CONDITION": "DAYLIGHT"},
	}
	first := a.Assign(rows)

	// Assigning the same tuples again adds nothing and keeps ids stable.
	again := a.Assign([]records.Record{
		{"WeatherID": nil, "WEATHER_CONDITION": "RAIN", "LIGHTING_CONDITION": "DAYLIGHT"},
	})
	if len(again) != 0 {
		t.Fatalf("repeat assign emitted %d rows", len(again))
	}
	id, ok := a.IDFor(records.Record{"WEATHER_CONDITION": "RAIN", "LIGHTING_CONDITION": "DAYLIGHT"})
	if !ok || id != first[1]["WeatherID"] {
		t.Fatalf("IDFor = %d, want %v", id, first[1]["WeatherID"])
	}
}

func TestNewAssignerRejectsNaturalKeyTable(t *testing.T) {
	p, _ := DefaultSchema().Dimension("PersonDimension")
	if _, err := NewAssigner(p); err == nil {
		t.Fatal("want error for table without id column")
	}
}

func TestAssignerKeyColumnOrderIsSchemaOrder(t *testing.T) {
	tb := weatherTable(t)
	want := []string{"WEATHER_CONDITION", "LIGHTING_CONDITION"}
	if got := tb.KeyColumns(); !reflect.DeepEqual(got, want) {
		t.Fatalf("key columns = %v, want %v", got, want)
	}
}
