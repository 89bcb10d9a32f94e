package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/tokens"
	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := Open(context.Background(), DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })

	if err := s.Prepare(context.Background(), false); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return s, path
}

func makeRows(volume string, n int) []tokens.Row {
	rows := make([]tokens.Row, n)
	for i := range rows {
		rows[i] = tokens.Row{VolumeID: volume, Token: fmt.Sprintf("tok%04d", i), PartOfSpeech: "NN", Count: int64(i + 1)}
	}
	return rows
}

func TestOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Name() != "sqlite" {
		t.Errorf("Name = %q, want sqlite", s.Name())
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid default config", cfg: DefaultConfig("/tmp/test.db")},
		{name: "empty path", cfg: Config{}, wantErr: true},
		{name: "bad synchronous", cfg: Config{Path: "x.db", Synchronous: "SOMETIMES"}, wantErr: true},
		{name: "negative cache", cfg: Config{Path: "x.db", CacheSizeKB: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestWriteBatchSizes covers statements of exactly, more than and fewer than
// one multi-row statement.
func TestWriteBatchSizes(t *testing.T) {
	for _, n := range []int{1, MultiRowBatchSize - 1, MultiRowBatchSize, MultiRowBatchSize*2 + 7} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			ctx := context.Background()
			s, _ := openTestStore(t)

			tx, err := s.Begin(ctx)
			if err != nil {
				t.Fatalf("Begin: %v", err)
			}
			want := makeRows("vol", n)
			if err := tx.WriteBatch(ctx, want); err != nil {
				t.Fatalf("WriteBatch: %v", err)
			}
			if err := tx.Commit(ctx); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			got, err := s.ReadAll(ctx)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRowsInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)

	reader, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	count := func() int {
		t.Helper()
		var n int
		if err := reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM tokens").Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := store.InsertRows(ctx, tx, makeRows("v1", 5), 2); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n := count(); n != 0 {
		t.Errorf("rows visible before commit: %d", n)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if n := count(); n != 5 {
		t.Errorf("rows after commit = %d, want 5", n)
	}
}

func TestRollbackDiscardsRows(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.WriteBatch(ctx, makeRows("v1", 3)); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Errorf("second Rollback: %v", err)
	}
	if err := tx.WriteBatch(ctx, makeRows("v1", 1)); !errors.Is(err, store.ErrTxDone) {
		t.Errorf("expected ErrTxDone after rollback, got %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestSingleTransaction(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Begin(ctx); !errors.Is(err, store.ErrTxInProgress) {
		t.Errorf("expected ErrTxInProgress, got %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin after commit: %v", err)
	}
	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestPrepareDrop(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	write := func(volume string) {
		t.Helper()
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		if err := tx.WriteBatch(ctx, makeRows(volume, 2)); err != nil {
			t.Fatalf("WriteBatch: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	write("a")
	// Re-running without drop appends duplicates.
	if err := s.Prepare(ctx, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	write("a")
	if n, _ := s.Count(ctx); n != 4 {
		t.Errorf("Count after append = %d, want 4", n)
	}

	if err := s.Prepare(ctx, true); err != nil {
		t.Fatalf("Prepare(drop): %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count after drop = %d, want 0", n)
	}
}

func TestCloseRollsBackOpenTransaction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := Open(ctx, DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Prepare(ctx, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.WriteBatch(ctx, makeRows("v", 3)); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(ctx, DefaultConfig(path))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close(ctx)

	rows, err := s2.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected uncommitted rows to be discarded, got %d", len(rows))
	}
}

func TestDistinctVolumesKeepOwnRows(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	for _, v := range []string{"b", "a"} {
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		if _, err := store.InsertRows(ctx, tx, makeRows(v, 3), store.DefaultBatchSize); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	got, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := append(makeRows("a", 3), makeRows("b", 3)...)
	sort.SliceStable(want, func(i, j int) bool { return want[i].VolumeID < want[j].VolumeID })
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func BenchmarkWriteBatch(b *testing.B) {
	ctx := context.Background()
	path := filepath.Join(b.TempDir(), "bench.db")
	s, err := Open(ctx, DefaultConfig(path))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close(ctx)
	if err := s.Prepare(ctx, true); err != nil {
		b.Fatal(err)
	}
	rows := makeRows("bench", 10000)

	b.ResetTimer()
	for range b.N {
		tx, err := s.Begin(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if err := tx.WriteBatch(ctx, rows); err != nil {
			b.Fatal(err)
		}
		if err := tx.Commit(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
