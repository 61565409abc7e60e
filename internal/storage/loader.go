package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"crashdw/internal/star"
	"crashdw/pkg/records"
)

// defaultBatchSize balances round trips against per-batch memory for the
// bulk-insert paths of all backends.
const defaultBatchSize = 5000

// LoadStar writes every star table through the repository, dimensions first
// so the fact table's foreign keys land on existing rows. Rows are converted
// to positional form in schema column order and flushed in batches; a progress
// line with rows/sec is logged per batch.
//
// Returns rows inserted per table.
func LoadStar(ctx context.Context, repo Repository, s star.Schema, tables map[string][]records.Record, batchSize int) (map[string]int64, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	counts := make(map[string]int64, len(tables))
	for _, t := range s.Tables() {
		rows, ok := tables[t.Name]
		if !ok {
			continue
		}
		n, err := loadTable(ctx, repo, t, rows, batchSize)
		counts[t.Name] = n
		if err != nil {
			return counts, fmt.Errorf("storage: load %s: %w", t.Name, err)
		}
	}
	return counts, nil
}

func loadTable(ctx context.Context, repo Repository, t star.Table, rows []records.Record, batchSize int) (int64, error) {
	var total int64
	batch := make([][]any, 0, batchSize)
	start := time.Now()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := repo.CopyInto(ctx, t.Name, t.Columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		rps := float64(total) / max(elapsed.Seconds(), 1e-9)
		log.Printf("storage: %s inserted=%d rps=%.0f elapsed=%s", t.Name, total, rps, elapsed.Round(time.Millisecond))
		return nil
	}

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = r[c]
		}
		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	return total, flush()
}
