// Package sqlitestore writes token rows into a local SQLite database file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/eunmann/tokenbench/pkg/fileutil"
	"github.com/eunmann/tokenbench/pkg/logging"
	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/tokens"
	_ "modernc.org/sqlite"
)

// Name is the backend name.
const Name = "sqlite"

// MultiRowBatchSize is the number of rows per multi-row INSERT statement.
// Rows left over after the last full statement go through a single-row one.
const MultiRowBatchSize = 256

// Config holds configuration for the SQLite store.
type Config struct {
	// Path is the database file.
	Path string
	// Synchronous sets the SQLite synchronous pragma: OFF, NORMAL or FULL.
	Synchronous string
	// CacheSizeKB is the page cache size in KB.
	CacheSizeKB int
}

// DefaultConfig returns a configuration tuned for bulk inserts.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Synchronous: "NORMAL",
		CacheSizeKB: 65536, // 64MB
	}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("sqlite path is required")
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("invalid Synchronous value %q: must be OFF, NORMAL, or FULL", c.Synchronous)
	}
	if c.CacheSizeKB < 0 {
		return fmt.Errorf("CacheSizeKB must be non-negative, got %d", c.CacheSizeKB)
	}
	return nil
}

// Store is a SQLite-backed store.Store.
type Store struct {
	db  *sql.DB
	cfg Config

	mu sync.Mutex
	tx *txn
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database file. The table is not touched until
// Prepare.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	created := !fileutil.Exists(cfg.Path)
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &store.ConnectionError{Backend: Name, Target: cfg.Path, Err: err}
	}
	// One connection keeps pragmas and the open transaction on the same handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA temp_store=MEMORY",
		fmt.Sprintf("PRAGMA cache_size=-%d", cfg.CacheSizeKB),
	}
	if cfg.Synchronous != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA synchronous=%s", cfg.Synchronous))
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, &store.ConnectionError{Backend: Name, Target: cfg.Path, Err: fmt.Errorf("execute %q: %w", pragma, err)}
		}
	}

	log := logging.WithPhase("sqlite_open")
	log.Debug().
		Str("db_path", cfg.Path).
		Str("synchronous", cfg.Synchronous).
		Bool("created", created).
		Msg("opened SQLite store")

	return &Store{db: db, cfg: cfg}, nil
}

// Name implements store.Store.
func (s *Store) Name() string { return Name }

// Prepare implements store.Store.
func (s *Store) Prepare(ctx context.Context, drop bool) error {
	if drop {
		if _, err := s.db.ExecContext(ctx, store.DropTableSQL()); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, store.CreateTableSQL("INTEGER")); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Begin implements store.Store. Statements are prepared per transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return nil, store.ErrTxInProgress
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	multi, err := sqlTx.PrepareContext(ctx, store.InsertSQL(MultiRowBatchSize, store.QuestionMark))
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, fmt.Errorf("prepare multi-row insert statement: %w", err)
	}
	single, err := sqlTx.PrepareContext(ctx, store.InsertSQL(1, store.QuestionMark))
	if err != nil {
		_ = multi.Close()
		_ = sqlTx.Rollback()
		return nil, fmt.Errorf("prepare insert statement: %w", err)
	}

	cols := len(store.Columns)
	t := &txn{
		owner:      s,
		tx:         sqlTx,
		multiStmt:  multi,
		singleStmt: single,
		batchArgs:  make([]interface{}, MultiRowBatchSize*cols),
		singleArgs: make([]interface{}, cols),
	}
	s.tx = t
	return t, nil
}

// Close implements store.Store. An open transaction is rolled back.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	t := s.tx
	s.mu.Unlock()

	if t != nil {
		// The connection is closing either way.
		_ = t.Rollback(ctx)
	}
	return s.db.Close()
}

// Count implements store.Counter.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+store.Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// ReadAll returns every committed row ordered by volume, token and tag.
func (s *Store) ReadAll(ctx context.Context) ([]tokens.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT volume_id, token, part_of_speech, count FROM "+store.Table+
			" ORDER BY volume_id, token, part_of_speech")
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []tokens.Row
	for rows.Next() {
		var r tokens.Row
		if err := rows.Scan(&r.VolumeID, &r.Token, &r.PartOfSpeech, &r.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

type txn struct {
	owner      *Store
	tx         *sql.Tx
	multiStmt  *sql.Stmt
	singleStmt *sql.Stmt

	// Reused across WriteBatch calls.
	batchArgs  []interface{}
	singleArgs []interface{}
}

// WriteBatch inserts rows with full multi-row statements followed by
// single-row inserts for the remainder.
func (t *txn) WriteBatch(ctx context.Context, rows []tokens.Row) error {
	if t.tx == nil {
		return store.ErrTxDone
	}

	cols := len(store.Columns)
	for i := 0; i+MultiRowBatchSize <= len(rows); i += MultiRowBatchSize {
		for j := 0; j < MultiRowBatchSize; j++ {
			fillArgs(t.batchArgs[j*cols:], rows[i+j])
		}
		if _, err := t.multiStmt.ExecContext(ctx, t.batchArgs...); err != nil {
			return fmt.Errorf("multi-row insert at %d: %w", i, err)
		}
	}

	remainder := len(rows) % MultiRowBatchSize
	for _, r := range rows[len(rows)-remainder:] {
		fillArgs(t.singleArgs, r)
		if _, err := t.singleStmt.ExecContext(ctx, t.singleArgs...); err != nil {
			return fmt.Errorf("insert token %q: %w", r.Token, err)
		}
	}
	return nil
}

func fillArgs(dst []interface{}, r tokens.Row) {
	dst[0] = r.VolumeID
	dst[1] = r.Token
	dst[2] = r.PartOfSpeech
	dst[3] = r.Count
}

func (t *txn) Commit(_ context.Context) error {
	if t.tx == nil {
		return store.ErrTxDone
	}
	t.closeStmts()
	err := t.tx.Commit()
	t.finish()
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *txn) Rollback(_ context.Context) error {
	if t.tx == nil {
		return nil
	}
	t.closeStmts()
	err := t.tx.Rollback()
	t.finish()
	if err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// closeStmts is best effort; the transaction end releases them anyway.
func (t *txn) closeStmts() {
	if t.multiStmt != nil {
		_ = t.multiStmt.Close()
		t.multiStmt = nil
	}
	if t.singleStmt != nil {
		_ = t.singleStmt.Close()
		t.singleStmt = nil
	}
}

func (t *txn) finish() {
	t.tx = nil
	t.owner.mu.Lock()
	if t.owner.tx == t {
		t.owner.tx = nil
	}
	t.owner.mu.Unlock()
}
