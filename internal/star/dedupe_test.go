package star

import (
	"reflect"
	"testing"

	"crashdw/pkg/records"
)

func TestDedupeByKeyFirstWins(t *testing.T) {
	rows := []records.Record{
		{"PERSON_ID": "P1", "CITY": "CHICAGO"},
		{"PERSON_ID": "P2", "CITY": "EVANSTON"},
		{"PERSON_ID": "P1", "CITY": "SKOKIE"}, // later duplicate loses
		{"PERSON_ID": "", "CITY": "NOWHERE"},  // empty key dropped
		{"CITY": "NOKEY"},                     // missing key dropped
	}
	kept, dropped := DedupeByKey(rows, []string{"PERSON_ID"})
	if len(kept) != 2 || dropped != 3 {
		t.Fatalf("kept=%d dropped=%d", len(kept), dropped)
	}
	if kept[0]["CITY"] != "CHICAGO" {
		t.Fatalf("first occurrence must win, got %v", kept[0])
	}
}

func TestDedupeByKeyComposite(t *testing.T) {
	rows := []records.Record{
		{"RD_NO": "A1", "CRASH_UNIT_ID": "1"},
		{"RD_NO": "A1", "CRASH_UNIT_ID": "2"},
		{"RD_NO": "A1", "CRASH_UNIT_ID": "1"},
		{"RD_NO": "", "CRASH_UNIT_ID": ""},
	}
	kept, dropped := DedupeByKey(rows, []string{"RD_NO", "CRASH_UNIT_ID"})
	if len(kept) != 2 || dropped != 2 {
		t.Fatalf("kept=%d dropped=%d", len(kept), dropped)
	}
}

func TestDedupeByFullRow(t *testing.T) {
	rows := []records.Record{
		{"A": "1", "B": "2"},
		{"B": "2", "A": "1"}, // same content, map order irrelevant
		{"A": "1", "B": nil},
		{"A": "1", "B": ""}, // null and empty differ
		{"A": "1"},          // missing column differs from both present forms
	}
	kept, dropped := DedupeByFullRow(rows)
	if len(kept) != 4 || dropped != 1 {
		t.Fatalf("kept=%d dropped=%d", len(kept), dropped)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	rows := []records.Record{
		{"PERSON_ID": "P1", "CITY": "CHICAGO"},
		{"PERSON_ID": "P1", "CITY": "SKOKIE"},
		{"PERSON_ID": "P2", "CITY": "EVANSTON"},
	}

	once, dropped := DedupeByKey(rows, []string{"PERSON_ID"})
	if dropped != 1 {
		t.Fatalf("first pass dropped = %d", dropped)
	}
	twice, dropped := DedupeByKey(once, []string{"PERSON_ID"})
	if dropped != 0 || !reflect.DeepEqual(once, twice) {
		t.Fatalf("second by-key pass changed output: dropped=%d %v", dropped, twice)
	}

	full, _ := DedupeByFullRow(rows)
	again, dropped := DedupeByFullRow(full)
	if dropped != 0 || !reflect.DeepEqual(full, again) {
		t.Fatalf("second full-row pass changed output: dropped=%d %v", dropped, again)
	}
}

func TestDedupeVehicleRows(t *testing.T) {
	rows := []records.Record{
		{"VEHICLE_ID": "V1", "RD_NO": "A1", "CRASH_UNIT_ID": "10"},
		{"VEHICLE_ID": "V1", "RD_NO": "B2", "CRASH_UNIT_ID": "20"}, // dup by VEHICLE_ID
		{"VEHICLE_ID": "-1", "RD_NO": "A1", "CRASH_UNIT_ID": "11"},
		{"VEHICLE_ID": "-1", "RD_NO": "B2", "CRASH_UNIT_ID": "11"}, // same unit, other crash: kept
		{"VEHICLE_ID": "-1", "RD_NO": "A1", "CRASH_UNIT_ID": "11"}, // exact sentinel dup
		{"VEHICLE_ID": "-1", "RD_NO": "A1"},                       // sentinel without unit: dropped
	}
	kept, dropped := DedupeVehicleRows(rows)
	if len(kept) != 3 || dropped != 3 {
		t.Fatalf("kept=%d dropped=%d: %v", len(kept), dropped, kept)
	}
	if kept[0]["VEHICLE_ID"] != "V1" || kept[1]["CRASH_UNIT_ID"] != "11" || kept[2]["RD_NO"] != "B2" {
		t.Fatalf("unexpected survivors: %v", kept)
	}
}

func TestDedupeVehicleRowsSentinelNeverCollidesWithRealID(t *testing.T) {
	// A real vehicle keyed "V" and a sentinel keyed "s" share no namespace
	// even if the raw key strings could be made to look alike.
	rows := []records.Record{
		{"VEHICLE_ID": "1", "RD_NO": "A1", "CRASH_UNIT_ID": "1"},
		{"VEHICLE_ID": "-1", "RD_NO": "A1", "CRASH_UNIT_ID": "1"},
	}
	kept, dropped := DedupeVehicleRows(rows)
	if len(kept) != 2 || dropped != 0 {
		t.Fatalf("kept=%d dropped=%d", len(kept), dropped)
	}
}
