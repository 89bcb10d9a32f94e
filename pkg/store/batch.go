package store

import (
	"context"
	"fmt"

	"github.com/eunmann/tokenbench/pkg/tokens"
)

// DefaultBatchSize is the number of rows per WriteBatch call.
const DefaultBatchSize = 10000

// InsertRows splits rows into consecutive chunks of batchSize, the last one
// possibly shorter, and writes each chunk with one WriteBatch call. It stops at
// the first failure and returns the rows written so far along with a
// *WriteError. Nothing is visible until the controlling transaction commits.
func InsertRows(ctx context.Context, w BatchWriter, rows []tokens.Row, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	written := 0
	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		end := min(start+batchSize, len(rows))
		if err := w.WriteBatch(ctx, rows[start:end]); err != nil {
			return written, &WriteError{Op: OpInsert, Offset: start, Rows: end - start, Err: err}
		}
		written += end - start
	}
	return written, nil
}

// BatchCount returns the number of WriteBatch calls InsertRows makes for n rows.
func BatchCount(n, batchSize int) int {
	if n <= 0 || batchSize <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}
