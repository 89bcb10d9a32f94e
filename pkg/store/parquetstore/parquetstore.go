// Package parquetstore writes token rows into Parquet files, one file per run
// and one row group per committed transaction.
package parquetstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/eunmann/tokenbench/pkg/logging"
	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/tokens"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// Name is the backend name.
const Name = "parquet"

const filePattern = store.Table + "-*.parquet"

// record is the on-disk row layout; column names match the SQL table.
type record struct {
	VolumeID     string `parquet:"volume_id,dict"`
	Token        string `parquet:"token"`
	PartOfSpeech string `parquet:"part_of_speech,dict"`
	Count        int64  `parquet:"count"`
}

// Config holds configuration for the Parquet store.
type Config struct {
	// Dir receives the run file.
	Dir string
	// RunID names the run file; a random one is used when empty.
	RunID string
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("parquet directory is required")
	}
	return nil
}

// Store is a Parquet-backed store.Store.
type Store struct {
	cfg  Config
	path string

	mu      sync.Mutex
	file    *os.File
	writer  *parquet.GenericWriter[record]
	tx      *txn
	written int64
}

var _ store.Store = (*Store)(nil)

// Open creates the output directory. The run file is created by Prepare.
func Open(_ context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &store.ConnectionError{Backend: Name, Target: cfg.Dir, Err: err}
	}
	return &Store{
		cfg:  cfg,
		path: filepath.Join(cfg.Dir, fmt.Sprintf("%s-%s.parquet", store.Table, cfg.RunID)),
	}, nil
}

// Name implements store.Store.
func (s *Store) Name() string { return Name }

// Path returns the file this run writes.
func (s *Store) Path() string { return s.path }

// Prepare implements store.Store. With drop set, files from earlier runs are
// removed before the run file is created.
func (s *Store) Prepare(_ context.Context, drop bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if drop {
		old, err := filepath.Glob(filepath.Join(s.cfg.Dir, filePattern))
		if err != nil {
			return fmt.Errorf("list parquet files: %w", err)
		}
		for _, p := range old {
			if p == s.path && s.file != nil {
				continue
			}
			if err := os.Remove(p); err != nil {
				return fmt.Errorf("drop %s: %w", p, err)
			}
		}
		log := logging.WithPhase("parquet_prepare")
		log.Debug().
			Int("removed", len(old)).
			Str("dir", s.cfg.Dir).
			Msg("dropped previous parquet files")
	}

	if s.writer != nil {
		return nil
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.file = f
	s.writer = parquet.NewGenericWriter[record](f, parquet.Compression(&parquet.Zstd))
	return nil
}

// Begin implements store.Store.
func (s *Store) Begin(_ context.Context) (store.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return nil, errors.New("parquet store not prepared")
	}
	if s.tx != nil {
		return nil, store.ErrTxInProgress
	}
	t := &txn{owner: s, open: true}
	s.tx = t
	return t, nil
}

// Close implements store.Store. Staged rows of an open transaction are
// discarded and the file footer is written.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		s.tx.staged = nil
		s.tx.open = false
		s.tx = nil
	}
	if s.writer == nil {
		return nil
	}

	werr := s.writer.Close()
	ferr := s.file.Close()
	s.writer = nil
	s.file = nil
	if werr != nil {
		return fmt.Errorf("close parquet writer: %w", werr)
	}
	if ferr != nil {
		return fmt.Errorf("close %s: %w", s.path, ferr)
	}
	return nil
}

// Count implements store.Counter: rows committed by this run plus rows in
// earlier run files.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	n := s.written
	s.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(s.cfg.Dir, filePattern))
	if err != nil {
		return 0, fmt.Errorf("list parquet files: %w", err)
	}
	for _, p := range files {
		if p == s.path {
			continue
		}
		rows, err := fileRows(p)
		if err != nil {
			return 0, err
		}
		n += rows
	}
	return n, nil
}

func fileRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return 0, fmt.Errorf("read parquet footer %s: %w", path, err)
	}
	return pf.NumRows(), nil
}

// ReadDir returns every row of every closed run file in dir, ordered by
// volume, token and tag.
func ReadDir(dir string) ([]tokens.Row, error) {
	files, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil {
		return nil, fmt.Errorf("list parquet files: %w", err)
	}

	var out []tokens.Row
	for _, p := range files {
		recs, err := parquet.ReadFile[record](p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		for _, r := range recs {
			out = append(out, tokens.Row{VolumeID: r.VolumeID, Token: r.Token, PartOfSpeech: r.PartOfSpeech, Count: r.Count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VolumeID != b.VolumeID {
			return a.VolumeID < b.VolumeID
		}
		if a.Token != b.Token {
			return a.Token < b.Token
		}
		return a.PartOfSpeech < b.PartOfSpeech
	})
	return out, nil
}

type txn struct {
	owner  *Store
	open   bool
	staged []record
}

func (t *txn) WriteBatch(_ context.Context, rows []tokens.Row) error {
	if !t.open {
		return store.ErrTxDone
	}
	for _, r := range rows {
		t.staged = append(t.staged, record{VolumeID: r.VolumeID, Token: r.Token, PartOfSpeech: r.PartOfSpeech, Count: r.Count})
	}
	return nil
}

// Commit writes the staged rows as one row group.
func (t *txn) Commit(_ context.Context) error {
	if !t.open {
		return store.ErrTxDone
	}
	s := t.owner
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := t.staged
	t.staged = nil
	t.open = false
	if s.tx == t {
		s.tx = nil
	}

	if len(staged) == 0 {
		return nil
	}
	if s.writer == nil {
		return errors.New("parquet store closed")
	}
	if _, err := s.writer.Write(staged); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush row group: %w", err)
	}
	s.written += int64(len(staged))
	return nil
}

func (t *txn) Rollback(_ context.Context) error {
	if !t.open {
		return nil
	}
	s := t.owner
	s.mu.Lock()
	t.staged = nil
	t.open = false
	if s.tx == t {
		s.tx = nil
	}
	s.mu.Unlock()
	return nil
}
