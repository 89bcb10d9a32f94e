// Package store defines the write path shared by every token table backend:
// a Store hands out transactions and a transaction accepts batches of rows.
package store

import (
	"context"

	"github.com/eunmann/tokenbench/pkg/tokens"
)

// Table is the name of the token count table.
const Table = "tokens"

// Columns lists the table columns in the order tokens.Row.Values returns them.
var Columns = []string{"volume_id", "token", "part_of_speech", "count"}

// BatchWriter writes one batch of rows in a single backend round trip.
type BatchWriter interface {
	WriteBatch(ctx context.Context, rows []tokens.Row) error
}

// Tx is an open write transaction. Rows written through it become visible to
// other readers only after Commit. Rollback after Commit is a no-op.
type Tx interface {
	BatchWriter
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is an open handle on a token table backend.
type Store interface {
	// Prepare creates the table when missing. With drop set the existing
	// table and its rows are removed first.
	Prepare(ctx context.Context, drop bool) error
	// Begin starts a transaction. Only one transaction may be open at a time.
	Begin(ctx context.Context) (Tx, error)
	// Close releases the handle, rolling back any open transaction.
	Close(ctx context.Context) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Counter is implemented by stores that can report how many rows the table
// holds.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}
