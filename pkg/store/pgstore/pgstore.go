// Package pgstore writes token rows into Postgres or TimescaleDB over a single
// pgx connection.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eunmann/tokenbench/internal/logctx"
	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/tokens"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/log/zerologadapter"
)

// insertOne is queued once per row by the batch method.
var insertOne = store.InsertSQL(1, store.Dollar)

// Store is a Postgres-protocol store.Store.
type Store struct {
	conn *pgx.Conn
	cfg  Config

	mu sync.Mutex
	tx *txn
}

var _ store.Store = (*Store)(nil)

// Open connects with cfg. Driver logs go to the context logger.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	connCfg, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, &store.ConnectionError{Backend: cfg.Flavor, Target: cfg.Redacted(), Err: err}
	}

	log := logctx.FromContext(ctx)
	var level pgx.LogLevel = pgx.LogLevelWarn
	if cfg.LogLevel != "" {
		if l, err := pgx.LogLevelFromString(cfg.LogLevel); err == nil {
			level = l
		}
	}
	connCfg.Logger = zerologadapter.NewLogger(log)
	connCfg.LogLevel = level

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, &store.ConnectionError{Backend: cfg.Flavor, Target: cfg.Redacted(), Err: classify(err)}
	}

	log.Debug().
		Str("backend", cfg.Flavor).
		Str("target", cfg.Redacted()).
		Str("method", cfg.Method).
		Msg("connected to postgres")

	return &Store{conn: conn, cfg: cfg}, nil
}

// Name implements store.Store.
func (s *Store) Name() string { return s.cfg.Flavor }

// Prepare implements store.Store.
func (s *Store) Prepare(ctx context.Context, drop bool) error {
	if drop {
		if _, err := s.conn.Exec(ctx, store.DropTableSQL()); err != nil {
			return fmt.Errorf("drop table: %w", classify(err))
		}
	}
	if _, err := s.conn.Exec(ctx, store.CreateTableSQL("BIGINT")); err != nil {
		return fmt.Errorf("create table: %w", classify(err))
	}
	return nil
}

// Begin implements store.Store.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		return nil, store.ErrTxInProgress
	}
	pgTx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", classify(err))
	}
	t := &txn{owner: s, tx: pgTx, method: s.cfg.Method}
	s.tx = t
	return t, nil
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	t := s.tx
	s.mu.Unlock()

	if t != nil {
		_ = t.Rollback(ctx)
	}
	return s.conn.Close(ctx)
}

// Count implements store.Counter. A missing table counts as empty.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+store.Table).Scan(&n)
	if IsUndefinedTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", classify(err))
	}
	return n, nil
}

type txn struct {
	owner  *Store
	tx     pgx.Tx
	method string
}

func (t *txn) WriteBatch(ctx context.Context, rows []tokens.Row) error {
	if t.tx == nil {
		return store.ErrTxDone
	}
	if len(rows) == 0 {
		return nil
	}
	if t.method == MethodCopy {
		return t.copyRows(ctx, rows)
	}
	return t.sendBatch(ctx, rows)
}

func (t *txn) sendBatch(ctx context.Context, rows []tokens.Row) error {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertOne, r.Values()...)
	}

	br := t.tx.SendBatch(ctx, b)
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert row %d: %w", i, classify(err))
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", classify(err))
	}
	return nil
}

func (t *txn) copyRows(ctx context.Context, rows []tokens.Row) error {
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
		return rows[i].Values(), nil
	})
	n, err := t.tx.CopyFrom(ctx, pgx.Identifier{store.Table}, store.Columns, src)
	if err != nil {
		return fmt.Errorf("copy rows: %w", classify(err))
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
	}
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.tx == nil {
		return store.ErrTxDone
	}
	err := t.tx.Commit(ctx)
	t.finish()
	if err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback(ctx)
	t.finish()
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", classify(err))
	}
	return nil
}

func (t *txn) finish() {
	t.tx = nil
	t.owner.mu.Lock()
	if t.owner.tx == t {
		t.owner.tx = nil
	}
	t.owner.mu.Unlock()
}
