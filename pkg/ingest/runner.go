// Package ingest drives a run: every volume file of a source is loaded,
// filtered by language, aggregated and written to a store, one transaction
// per file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eunmann/tokenbench/internal/logctx"
	"github.com/eunmann/tokenbench/pkg/humanfmt"
	"github.com/eunmann/tokenbench/pkg/langcode"
	"github.com/eunmann/tokenbench/pkg/logging"
	"github.com/eunmann/tokenbench/pkg/metrics"
	"github.com/eunmann/tokenbench/pkg/source"
	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/tokens"
	"github.com/eunmann/tokenbench/pkg/volume"
)

const phase = "ingest"

// DefaultProgressEvery is how many files pass between progress events.
const DefaultProgressEvery = 100

// Config holds run settings.
type Config struct {
	// Language is the metadata.language value of documents that are loaded;
	// compared exactly.
	Language string
	// BatchSize is the number of rows per batched write.
	BatchSize int
	// ProgressEvery logs progress after every Nth file; zero disables it.
	ProgressEvery int
}

// DefaultConfig returns the standard run settings.
func DefaultConfig() Config {
	return Config{
		Language:      langcode.Default,
		BatchSize:     store.DefaultBatchSize,
		ProgressEvery: DefaultProgressEvery,
	}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Language == "" {
		return errors.New("language is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: got %d", store.ErrInvalidBatchSize, c.BatchSize)
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("progress interval must be non-negative, got %d", c.ProgressEvery)
	}
	return nil
}

// Summary reports what a run did. It is returned even when the run aborts,
// covering the files finished before the failure.
type Summary struct {
	Files     int
	Processed int64
	Skipped   int64
	Rows      int64
	Batches   int64
	// InsertTime is the time spent in batched writes only.
	InsertTime time.Duration
	Elapsed    time.Duration
}

// RowsPerSecond is the insert throughput over InsertTime.
func (s Summary) RowsPerSecond() float64 {
	return humanfmt.PerSecond(s.Rows, s.InsertTime)
}

// Runner processes every file of a source into a store. The caller owns both
// and closes them.
type Runner struct {
	src     source.Source
	st      store.Store
	cfg     Config
	metrics *metrics.Metrics
}

// NewRunner validates cfg and returns a Runner. m may be nil.
func NewRunner(src source.Source, st store.Store, cfg Config, m *metrics.Metrics) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Runner{src: src, st: st, cfg: cfg, metrics: m}, nil
}

// Run processes the files in listing order. The first failure of any file
// aborts the run; files already committed stay committed.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	var sum Summary
	files, err := r.src.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("list %s: %w", r.src, err)
	}
	sum.Files = len(files)

	log.Info().
		Str("source", r.src.String()).
		Str("backend", r.st.Name()).
		Str("language", r.cfg.Language).
		Int("batch_size", r.cfg.BatchSize).
		Int("files", len(files)).
		Msg("starting ingestion")

	tracker := logging.NewProgressTracker(phase, int64(len(files)), log)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}

		fileStart := time.Now()
		res, err := r.processFile(logctx.WithStr(ctx, "file", name), name)
		if err != nil {
			r.metrics.Document(metrics.OutcomeFailed)
			sum.Elapsed = time.Since(start)
			processed, skipped, total := tracker.Progress()
			log.Error().
				Err(err).
				Str("file", name).
				Int64("processed", processed).
				Int64("skipped", skipped).
				Int64("total", total).
				Msg("ingestion aborted")
			return sum, fmt.Errorf("process %s: %w", name, err)
		}

		if res.skipped {
			sum.Skipped++
			tracker.RecordSkip(time.Since(fileStart))
			r.metrics.Document(metrics.OutcomeSkipped)
		} else {
			sum.Processed++
			sum.Rows += int64(res.rows)
			sum.Batches += int64(res.batches)
			sum.InsertTime += res.insertTime
			tracker.RecordCompletion(time.Since(fileStart))
			r.metrics.Document(metrics.OutcomeProcessed)
			r.metrics.Insert(r.st.Name(), res.rows, res.insertTime)
		}
		tracker.MaybeReport(r.cfg.ProgressEvery)
	}

	sum.Elapsed = time.Since(start)
	ev := logging.PhaseComplete(log, phase, sum.Elapsed).
		Int("files", sum.Files).
		Int64("processed", sum.Processed).
		Int64("skipped", sum.Skipped).
		Count("rows", sum.Rows).
		Int64("batches", sum.Batches).
		Rate("rows", sum.Rows, sum.InsertTime)
	if c, ok := r.st.(store.Counter); ok {
		if n, err := c.Count(ctx); err == nil {
			ev.Count("stored_rows", n)
		} else {
			log.Warn().Err(err).Msg("count stored rows")
		}
	}
	ev.Log("ingestion complete")

	return sum, nil
}

type fileResult struct {
	skipped    bool
	rows       int
	tokens     int64
	batches    int
	insertTime time.Duration
}

// processFile loads one file and writes its rows in its own transaction. The
// transaction is committed even when the document is filtered out, and
// rolled back on any failure after Begin.
func (r *Runner) processFile(ctx context.Context, name string) (res fileResult, err error) {
	log := logctx.FromContext(ctx)
	start := time.Now()

	doc, err := volume.Load(ctx, r.src, name)
	if err != nil {
		return res, err
	}

	tx, err := r.st.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Warn().Err(rbErr).Msg("rollback failed")
		}
	}()

	if doc.Metadata.Language != r.cfg.Language {
		res.skipped = true
	} else {
		var rows []tokens.Row
		rows, err = tokens.Aggregate(doc)
		if err != nil {
			return res, err
		}
		res.tokens = tokens.Total(rows)
		log.Debug().
			Int("rows", len(rows)).
			Int("batches", store.BatchCount(len(rows), r.cfg.BatchSize)).
			Msg("inserting rows")

		w := &countingWriter{w: tx, backend: r.st.Name(), metrics: r.metrics}
		insertStart := time.Now()
		res.rows, err = store.InsertRows(ctx, w, rows, r.cfg.BatchSize)
		res.insertTime = time.Since(insertStart)
		res.batches = w.calls
		if err != nil {
			return res, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return res, &store.WriteError{Op: store.OpCommit, Err: err}
	}

	if res.skipped {
		logging.DocumentSkipped(log, phase, time.Since(start)).
			Str("volume_id", doc.ID).
			Str("language", doc.Metadata.Language).
			LogDebug("document skipped")
	} else {
		logging.DocumentLoaded(log, phase, time.Since(start)).
			Str("volume_id", doc.ID).
			Int("rows", res.rows).
			Count("tokens", res.tokens).
			Int("batches", res.batches).
			Rate("rows", int64(res.rows), res.insertTime).
			LogDebug("document loaded")
	}
	return res, nil
}

// countingWriter counts WriteBatch calls on the way to the transaction.
type countingWriter struct {
	w       store.BatchWriter
	backend string
	metrics *metrics.Metrics
	calls   int
}

func (c *countingWriter) WriteBatch(ctx context.Context, rows []tokens.Row) error {
	c.calls++
	c.metrics.Batch(c.backend)
	return c.w.WriteBatch(ctx, rows)
}
