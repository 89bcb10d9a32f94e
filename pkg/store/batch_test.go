package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/eunmann/tokenbench/pkg/tokens"
	"github.com/google/go-cmp/cmp"
)

type recordingWriter struct {
	calls  [][]tokens.Row
	failAt int
	err    error
}

func (w *recordingWriter) WriteBatch(_ context.Context, rows []tokens.Row) error {
	if w.err != nil && len(w.calls) == w.failAt {
		return w.err
	}
	cp := make([]tokens.Row, len(rows))
	copy(cp, rows)
	w.calls = append(w.calls, cp)
	return nil
}

func makeRows(n int) []tokens.Row {
	rows := make([]tokens.Row, n)
	for i := range rows {
		rows[i] = tokens.Row{VolumeID: "v", Token: fmt.Sprintf("t%d", i), PartOfSpeech: "NN", Count: int64(i + 1)}
	}
	return rows
}

func TestInsertRowsChunking(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		batchSize int
		wantSizes []int
	}{
		{name: "five rows batch two", rows: 5, batchSize: 2, wantSizes: []int{2, 2, 1}},
		{name: "exact multiple", rows: 6, batchSize: 3, wantSizes: []int{3, 3}},
		{name: "batch larger than rows", rows: 4, batchSize: 10000, wantSizes: []int{4}},
		{name: "batch of one", rows: 3, batchSize: 1, wantSizes: []int{1, 1, 1}},
		{name: "no rows", rows: 0, batchSize: 5, wantSizes: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := makeRows(tt.rows)
			w := &recordingWriter{}

			n, err := InsertRows(context.Background(), w, rows, tt.batchSize)
			if err != nil {
				t.Fatalf("InsertRows: %v", err)
			}
			if n != tt.rows {
				t.Errorf("written = %d, want %d", n, tt.rows)
			}

			var sizes []int
			var flat []tokens.Row
			for _, c := range w.calls {
				sizes = append(sizes, len(c))
				flat = append(flat, c...)
			}
			if diff := cmp.Diff(tt.wantSizes, sizes); diff != "" {
				t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
			}
			if len(rows) > 0 {
				if diff := cmp.Diff(rows, flat); diff != "" {
					t.Errorf("rows out of order (-want +got):\n%s", diff)
				}
			}
			if got := BatchCount(tt.rows, tt.batchSize); got != len(tt.wantSizes) {
				t.Errorf("BatchCount = %d, want %d", got, len(tt.wantSizes))
			}
		})
	}
}

func TestInsertRowsInvalidBatchSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		w := &recordingWriter{}
		_, err := InsertRows(context.Background(), w, makeRows(3), size)
		if !errors.Is(err, ErrInvalidBatchSize) {
			t.Errorf("batch %d: expected ErrInvalidBatchSize, got %v", size, err)
		}
		if len(w.calls) != 0 {
			t.Errorf("batch %d: expected no writes, got %d", size, len(w.calls))
		}
	}
}

func TestInsertRowsWriteFailure(t *testing.T) {
	boom := errors.New("disk full")
	w := &recordingWriter{failAt: 1, err: boom}

	n, err := InsertRows(context.Background(), w, makeRows(5), 2)
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}

	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %T: %v", err, err)
	}
	if we.Op != OpInsert || we.Offset != 2 || we.Rows != 2 {
		t.Errorf("unexpected WriteError %+v", we)
	}
	if !errors.Is(err, ErrWrite) {
		t.Error("expected errors.Is(err, ErrWrite)")
	}
	if !errors.Is(err, boom) {
		t.Error("expected cause to be preserved")
	}
	if len(w.calls) != 1 {
		t.Errorf("expected writing to stop after failure, got %d calls", len(w.calls))
	}
}

func TestInsertRowsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &recordingWriter{}
	_, err := InsertRows(ctx, w, makeRows(3), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(w.calls) != 0 {
		t.Errorf("expected no writes, got %d", len(w.calls))
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{&WriteError{Op: OpInsert, Offset: 4, Rows: 2, Err: cause}, "store write: batch of 2 rows at offset 4: boom"},
		{&WriteError{Op: OpCommit, Err: cause}, "store write: commit: boom"},
		{&ConnectionError{Backend: "postgres", Target: "host=localhost port=5432", Err: cause}, "connect postgres (host=localhost port=5432): boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	if !errors.Is(&ConnectionError{Err: cause}, ErrConnection) {
		t.Error("expected ConnectionError to match ErrConnection")
	}
	if errors.Is(&ConnectionError{Err: cause}, ErrWrite) {
		t.Error("ConnectionError must not match ErrWrite")
	}
}
