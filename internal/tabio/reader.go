// Package tabio reads and writes the tabular CSV form of pipeline data. The
// reader streams rows into Records without buffering the whole file; the
// writer renders tables back out in schema-declared column order.
package tabio

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"crashdw/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// warnLimit caps logged soft-failures per file; the rest are only counted.
const warnLimit = 400

// ReadOptions configures Read. The zero value reads a plain comma-separated
// file with a header row.
type ReadOptions struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims leading and trailing spaces from every cell.
	TrimSpace bool

	// HeaderMap renames source headers to canonical column names. Unmapped
	// headers pass through unchanged; the crash extracts already carry the
	// canonical UPPER_SNAKE names.
	HeaderMap map[string]string

	// LazyQuotes relaxes quote handling for dirty exports.
	LazyQuotes bool

	// OnErr receives recoverable row errors (soft-drop). Nil logs them.
	OnErr func(line int, err error)
}

// Read parses one CSV extract into Records keyed by header name. Empty cells
// become nil, never "": a quoted empty field and an absent value are already
// indistinguishable at the CSV layer, and downstream null handling needs one
// consistent representation for "source said nothing".
//
// Malformed and wrong-width rows are soft-dropped and counted, not fatal; a
// multi-million-row municipal extract always has a few.
func Read(r io.Reader, opt ReadOptions) ([]records.Record, int, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	onErr := opt.OnErr
	if onErr == nil {
		var logged int
		onErr = func(line int, err error) {
			if logged < warnLimit {
				log.Printf("tabio: skipping row %d: %v", line, err)
			}
			logged++
		}
	}

	hdr, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("tabio: read header: %w", err)
	}
	headers := canonicalHeaders(hdr, opt.HeaderMap)

	var out []records.Record
	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			onErr(line, err)
			skipped++
			continue
		}
		if len(row) != len(headers) {
			onErr(line, fmt.Errorf("field count %d, want %d", len(row), len(headers)))
			skipped++
			continue
		}
		rec := make(records.Record, len(headers))
		for i, v := range row {
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				rec[headers[i]] = nil
			} else {
				rec[headers[i]] = v
			}
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// canonicalHeaders strips the BOM, trims, and applies the rename map. Header
// case is preserved; the schema speaks the source's own column names.
func canonicalHeaders(h []string, rename map[string]string) []string {
	out := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := rename[c]; ok {
			c = m
		}
		out[i] = c
	}
	return out
}
