package index

import (
	"reflect"
	"testing"

	"crashdw/pkg/records"
)

func TestBuildSingleKey(t *testing.T) {
	rows := []records.Record{
		{"RD_NO": "A1", "CRASH_TYPE": "REAR END"},
		{"RD_NO": "B2", "CRASH_TYPE": "TURNING"},
	}
	ix := Build(rows, "RD_NO")

	if ix.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ix.Len())
	}
	r, ok := ix.Lookup("A1")
	if !ok || r["CRASH_TYPE"] != "REAR END" {
		t.Fatalf("Lookup(A1) = %v, %v", r, ok)
	}
	if _, ok := ix.Lookup("C3"); ok {
		t.Fatalf("Lookup(C3) should miss")
	}
	if ix.Collisions != 0 {
		t.Fatalf("Collisions = %d, want 0", ix.Collisions)
	}
}

func TestBuildLastWriteWinsCountsCollisions(t *testing.T) {
	rows := []records.Record{
		{"RD_NO": "A1", "CRASH_TYPE": "first"},
		{"RD_NO": "A1", "CRASH_TYPE": "second"},
	}
	ix := Build(rows, "RD_NO")

	if ix.Collisions != 1 {
		t.Fatalf("Collisions = %d, want 1", ix.Collisions)
	}
	r, _ := ix.Lookup("A1")
	if r["CRASH_TYPE"] != "second" {
		t.Fatalf("last write should win, got %v", r["CRASH_TYPE"])
	}
}

func TestCompositeKeyAndMissingColumns(t *testing.T) {
	rows := []records.Record{
		{"CRASH_UNIT_ID": "1", "RD_NO": "A1", "MAKE": "FORD"},
		{"CRASH_UNIT_ID": "1", "RD_NO": "B2", "MAKE": "HONDA"},
		{"RD_NO": "C3", "MAKE": "NOKEY"}, // CRASH_UNIT_ID absent -> ""
	}
	ix := Build(rows, "CRASH_UNIT_ID", "RD_NO")

	r, ok := ix.Lookup("1", "B2")
	if !ok || r["MAKE"] != "HONDA" {
		t.Fatalf("Lookup(1,B2) = %v, %v", r, ok)
	}
	// Missing key column participates as empty string.
	r, ok = ix.Lookup("", "C3")
	if !ok || r["MAKE"] != "NOKEY" {
		t.Fatalf("Lookup(,C3) = %v, %v", r, ok)
	}
}

func TestBuildMultiPreservesOrder(t *testing.T) {
	rows := []records.Record{
		{"RD_NO": "A1", "VEHICLE_ID": "V1"},
		{"RD_NO": "A1", "VEHICLE_ID": "V2"},
		{"RD_NO": "B2", "VEHICLE_ID": "V3"},
	}
	ix := BuildMulti(rows, "RD_NO")

	got := ix.Lookup("A1")
	if len(got) != 2 || got[0]["VEHICLE_ID"] != "V1" || got[1]["VEHICLE_ID"] != "V2" {
		t.Fatalf("Lookup(A1) = %v", got)
	}
	first, ok := ix.First("A1")
	if !ok || first["VEHICLE_ID"] != "V1" {
		t.Fatalf("First(A1) = %v, %v", first, ok)
	}
	if _, ok := ix.First("Z9"); ok {
		t.Fatalf("First(Z9) should miss")
	}
}

func TestKeyOfSeparatorAmbiguity(t *testing.T) {
	// ("a","b") and ("a\x1fb","") must not produce rows that look identical
	// through normal string columns; KeyOf joins with \x1f so plain values
	// never alias.
	a := KeyOf(records.Record{"x": "a", "y": "b"}, []string{"x", "y"})
	b := KeyOf(records.Record{"x": "ab", "y": ""}, []string{"x", "y"})
	if a == b {
		t.Fatalf("composite keys alias: %q", a)
	}
	if !reflect.DeepEqual(Join("a", "b"), a) {
		t.Fatalf("Join mismatch: %q vs %q", Join("a", "b"), a)
	}
}
