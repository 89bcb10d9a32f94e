// Package cli implements the command-line interface for tokenbench.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/eunmann/tokenbench/internal/config"
)

// Run executes the CLI with the given arguments. SIGINT and SIGTERM cancel
// the run in progress.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp(os.Stdout).RunContext(ctx, append([]string{"tokenbench"}, args...))
}

func newApp(w io.Writer) *cli.App {
	return &cli.App{
		Name:      "tokenbench",
		Usage:     "load part-of-speech token counts from extracted-features volumes into a table",
		UsageText: "tokenbench [-db postgres|timescaledb|sqlite|parquet] [--data DIR|s3://bucket/prefix] [--drop] [--batch N]",
		Writer:    w,
		ErrWriter: w,
		Flags:     runFlags(),
		Action:    runAction,
		Commands: []*cli.Command{
			generateCommand(),
		},
		HideHelpCommand: true,
		// errors are printed once by main
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func runFlags() []cli.Flag {
	def := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "YAML config file; flags and environment override it",
			EnvVars: []string{"TOKENBENCH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "db",
			Value:   def.DB,
			Usage:   "store backend: postgres, timescaledb, sqlite or parquet",
			EnvVars: []string{"TOKENBENCH_DB"},
		},
		&cli.StringFlag{
			Name:    "data",
			Value:   def.Data,
			Usage:   "directory or s3://bucket/prefix holding *.bz2 volumes",
			EnvVars: []string{"TOKENBENCH_DATA"},
		},
		&cli.BoolFlag{
			Name:    "drop",
			Usage:   "drop the tokens table (or previous parquet files) before loading",
			EnvVars: []string{"TOKENBENCH_DROP"},
		},
		&cli.IntFlag{
			Name:    "batch",
			Value:   def.Batch,
			Usage:   "rows per batched insert",
			EnvVars: []string{"TOKENBENCH_BATCH"},
		},
		&cli.StringFlag{
			Name:    "language",
			Value:   def.Language,
			Usage:   "metadata.language code of the volumes to load",
			EnvVars: []string{"TOKENBENCH_LANGUAGE"},
		},
		&cli.IntFlag{
			Name:  "progress-every",
			Value: def.ProgressEvery,
			Usage: "log progress after every N files, 0 to disable",
		},
		&cli.StringFlag{
			Name:    "method",
			Value:   def.Postgres.Method,
			Usage:   "postgres insert method: batch or copy",
			EnvVars: []string{"TOKENBENCH_PG_METHOD"},
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   def.Postgres.Host,
			Usage:   "postgres host",
			EnvVars: []string{"TOKENBENCH_PG_HOST"},
		},
		&cli.IntFlag{
			Name:        "port",
			Usage:       "postgres port",
			DefaultText: "5432, or 6543 for timescaledb",
			EnvVars:     []string{"TOKENBENCH_PG_PORT"},
		},
		&cli.StringFlag{
			Name:    "user",
			Value:   def.Postgres.User,
			Usage:   "postgres user",
			EnvVars: []string{"TOKENBENCH_PG_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Value:   def.Postgres.Password,
			Usage:   "postgres password",
			EnvVars: []string{"TOKENBENCH_PG_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "dbname",
			Usage:   "postgres database, defaults to the user name",
			EnvVars: []string{"TOKENBENCH_PG_DBNAME"},
		},
		&cli.StringFlag{
			Name:    "dsn",
			Usage:   "postgres connection string, replaces host/port/user/password/dbname",
			EnvVars: []string{"TOKENBENCH_PG_DSN"},
		},
		&cli.StringFlag{
			Name:  "sqlite-path",
			Value: def.SQLite.Path,
			Usage: "sqlite database file",
		},
		&cli.StringFlag{
			Name:  "parquet-dir",
			Value: def.Parquet.Dir,
			Usage: "directory receiving tokens-<run>.parquet",
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "serve Prometheus metrics on this address, e.g. :9090",
			EnvVars: []string{"TOKENBENCH_METRICS_ADDR"},
		},
		&cli.BoolFlag{
			Name:  "log-debug",
			Usage: "enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "log-human",
			Usage: "human-readable console logs",
		},
	}
}

// resolveConfig layers the config file, environment and flags over the
// defaults, in that order, and validates the result. A flag counts as set
// when given on the command line or through its environment variable.
func resolveConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	setString("db", &cfg.DB)
	setString("data", &cfg.Data)
	setBool("drop", &cfg.Drop)
	setInt("batch", &cfg.Batch)
	setString("language", &cfg.Language)
	setInt("progress-every", &cfg.ProgressEvery)
	setString("metrics-addr", &cfg.MetricsAddr)

	setString("method", &cfg.Postgres.Method)
	setString("host", &cfg.Postgres.Host)
	setInt("port", &cfg.Postgres.Port)
	setString("user", &cfg.Postgres.User)
	setString("password", &cfg.Postgres.Password)
	setString("dbname", &cfg.Postgres.DBName)
	setString("dsn", &cfg.Postgres.DSN)

	setString("sqlite-path", &cfg.SQLite.Path)
	setString("parquet-dir", &cfg.Parquet.Dir)

	setBool("log-debug", &cfg.Log.Debug)
	setBool("log-human", &cfg.Log.Human)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
