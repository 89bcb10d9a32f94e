package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/eunmann/tokenbench/internal/config"
	"github.com/eunmann/tokenbench/internal/logctx"
	"github.com/eunmann/tokenbench/pkg/hostinfo"
	"github.com/eunmann/tokenbench/pkg/humanfmt"
	"github.com/eunmann/tokenbench/pkg/ingest"
	"github.com/eunmann/tokenbench/pkg/langcode"
	"github.com/eunmann/tokenbench/pkg/logging"
	"github.com/eunmann/tokenbench/pkg/memdiag"
	"github.com/eunmann/tokenbench/pkg/metrics"
	"github.com/eunmann/tokenbench/pkg/source"
	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/store/parquetstore"
	"github.com/eunmann/tokenbench/pkg/store/pgstore"
	"github.com/eunmann/tokenbench/pkg/store/sqlitestore"
)

func runAction(c *cli.Context) (err error) {
	if c.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(c.Args().Slice(), " "))
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Debug, cfg.Log.Human)

	ctx, runID := logctx.WithRun(logctx.WithLogger(c.Context, *logging.L()))
	log := logctx.FromContext(ctx)

	lang, _ := langcode.Parse(cfg.Language)
	log.Info().
		Str("event", "run_started").
		Str("db", cfg.DB).
		Str("data", cfg.Data).
		Bool("drop", cfg.Drop).
		Int("batch", cfg.Batch).
		Str("language", lang.Code).
		Str("language_name", lang.Name).
		Object("host", hostinfo.Collect()).
		Msg("run started")
	if !lang.Known() {
		log.Warn().Str("language", lang.Code).Msg("unrecognized language code, filtering on it anyway")
	}

	src, err := source.Open(ctx, cfg.Data)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, &cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	if err := st.Prepare(ctx, cfg.Drop); err != nil {
		return fmt.Errorf("prepare store: %w", err)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)

		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		addr, serveErr, err := metrics.Serve(srvCtx, cfg.MetricsAddr, reg)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		log.Info().Str("addr", addr.String()).Msg("serving metrics")
		go logServeError(log, serveErr)
	}

	mem := memdiag.NewTracker(memdiag.DefaultInterval, log)
	if cfg.Log.Debug {
		mem.Start()
		defer mem.Stop()
	}

	runner, err := ingest.NewRunner(src, st, cfg.Ingest(), m)
	if err != nil {
		return err
	}
	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("event", "run_completed").
		Float64("rows_per_sec", sum.RowsPerSecond()).
		Object("memory", mem.Sample()).
		Uint64("peak_heap", mem.PeakHeap()).
		Msg("run completed")

	fmt.Fprintf(c.App.Writer, "%s: %d files, %d processed, %d skipped, %s rows in %s (%s)\n",
		st.Name(), sum.Files, sum.Processed, sum.Skipped,
		humanfmt.Count(sum.Rows), humanfmt.Duration(sum.Elapsed),
		humanfmt.Rate(sum.Rows, sum.InsertTime, "rows"))
	return nil
}

// openStore opens the backend cfg selects. runID names the parquet run file.
func openStore(ctx context.Context, cfg *config.Config, runID string) (store.Store, error) {
	switch cfg.DB {
	case config.BackendPostgres, config.BackendTimescaleDB:
		return pgstore.Open(ctx, cfg.PostgresStore())
	case config.BackendSQLite:
		return sqlitestore.Open(ctx, cfg.SQLiteStore())
	case config.BackendParquet:
		pc := cfg.ParquetStore()
		pc.RunID = runID
		return parquetstore.Open(ctx, pc)
	default:
		return nil, fmt.Errorf("invalid db %q", cfg.DB)
	}
}

// logServeError logs the metrics server's exit error, if any. The run
// continues without metrics.
func logServeError(log zerolog.Logger, errs <-chan error) {
	if err := <-errs; err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
