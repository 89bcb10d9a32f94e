package store

import (
	"errors"
	"fmt"
)

var (
	// ErrWrite matches every *WriteError.
	ErrWrite = errors.New("store write failed")
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("store connection failed")
	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	// ErrTxInProgress is returned by Begin while another transaction is open.
	ErrTxInProgress = errors.New("transaction already in progress")
	// ErrTxDone is returned when writing through a finished transaction.
	ErrTxDone = errors.New("transaction already finished")
)

// Write operations reported by WriteError.
const (
	OpInsert = "insert"
	OpCommit = "commit"
)

// WriteError reports a failed batch insert or commit.
type WriteError struct {
	Op     string
	Offset int
	Rows   int
	Err    error
}

func (e *WriteError) Error() string {
	if e.Op == OpCommit {
		return fmt.Sprintf("store write: commit: %v", e.Err)
	}
	return fmt.Sprintf("store write: batch of %d rows at offset %d: %v", e.Rows, e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// ConnectionError reports a store that could not be opened or reached.
// Target never carries a password.
type ConnectionError struct {
	Backend string
	Target  string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s (%s): %v", e.Backend, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
