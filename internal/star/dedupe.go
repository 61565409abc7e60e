package star

import (
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"crashdw/internal/index"
	"crashdw/pkg/records"
)

// sentinelVehicleID marks person rows that reference no real vehicle in the
// source extract. Sentinel rows are not vehicles; they are kept only when
// their crash-unit identity distinguishes them.
const sentinelVehicleID = "-1"

// DedupeByKey keeps the first row per natural key and drops rows whose key is
// entirely empty. First-wins matches the load semantics downstream: the first
// occurrence is the one a key lookup would return.
func DedupeByKey(rows []records.Record, keyCols []string) (kept []records.Record, dropped int) {
	seen := make(map[string]bool, len(rows))
	kept = make([]records.Record, 0, len(rows))
	for _, r := range rows {
		k := index.KeyOf(r, keyCols)
		if emptyKey(k, len(keyCols)) {
			dropped++
			continue
		}
		if seen[k] {
			dropped++
			continue
		}
		seen[k] = true
		kept = append(kept, r)
	}
	return kept, dropped
}

// emptyKey reports whether a composite key built from n parts is all-empty.
func emptyKey(k string, n int) bool {
	return k == strings.Repeat(string(rune(0x1f)), n-1)
}

// DedupeByFullRow keeps the first row of every identical-content group. Two
// rows are identical when they agree on every column, null included; column
// iteration order is neutralized by sorting the pairs before encoding.
//
// Encodings are retained per hash bucket so distinct rows never merge through
// an xxh3 collision.
func DedupeByFullRow(rows []records.Record) (kept []records.Record, dropped int) {
	buckets := make(map[uint64][]string, len(rows))
	kept = make([]records.Record, 0, len(rows))
	for _, r := range rows {
		enc := encodeFullRow(r)
		h := xxh3.HashString(enc)
		dup := false
		for _, e := range buckets[h] {
			if e == enc {
				dup = true
				break
			}
		}
		if dup {
			dropped++
			continue
		}
		buckets[h] = append(buckets[h], enc)
		kept = append(kept, r)
	}
	return kept, dropped
}

func encodeFullRow(r records.Record) string {
	pairs := make([]string, 0, len(r))
	for k, v := range r {
		var sb strings.Builder
		sb.WriteString(k)
		sb.WriteByte('=')
		if v == nil {
			sb.WriteByte(tupleNil)
		} else {
			sb.WriteString(r.String(k))
		}
		pairs = append(pairs, sb.String())
	}
	sort.Strings(pairs)
	return strings.Join(pairs, string(rune(tupleSep)))
}

// DedupeVehicleRows dedupes projected vehicle-dimension rows. Real vehicles
// dedupe by VEHICLE_ID alone; sentinel rows ("-1" or absent VEHICLE_ID) are
// not interchangeable across crashes, so they key by (RD_NO, CRASH_UNIT_ID)
// instead. A sentinel row without a CRASH_UNIT_ID carries no identity at all
// and is dropped.
func DedupeVehicleRows(rows []records.Record) (kept []records.Record, dropped int) {
	seen := make(map[string]bool, len(rows))
	kept = make([]records.Record, 0, len(rows))
	for _, r := range rows {
		vid := r.String("VEHICLE_ID")
		var k string
		if vid == "" || vid == sentinelVehicleID {
			unit := r.String("CRASH_UNIT_ID")
			if unit == "" {
				dropped++
				continue
			}
			k = "s" + index.Join(r.String("RD_NO"), unit)
		} else {
			k = "v" + vid
		}
		if seen[k] {
			dropped++
			continue
		}
		seen[k] = true
		kept = append(kept, r)
	}
	return kept, dropped
}
