package tabio

import (
	"encoding/csv"
	"fmt"
	"io"

	"crashdw/internal/star"
	"crashdw/pkg/records"
)

// WriteTable renders rows as CSV in the table's declared column order, header
// first. Null values render as the empty cell; CSV cannot carry the null/""
// distinction, so the database loader is the lossless path and these files
// are the inspectable one.
func WriteTable(w io.Writer, t star.Table, rows []records.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("tabio: write %s header: %w", t.Name, err)
	}
	cells := make([]string, len(t.Columns))
	for _, r := range rows {
		for i, c := range t.Columns {
			cells[i] = r.String(c)
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("tabio: write %s row: %w", t.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("tabio: flush %s: %w", t.Name, err)
	}
	return nil
}
