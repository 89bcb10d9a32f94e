// Package config holds the settings of a tokenbench run and loads them from
// YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eunmann/tokenbench/pkg/ingest"
	"github.com/eunmann/tokenbench/pkg/langcode"
	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/store/parquetstore"
	"github.com/eunmann/tokenbench/pkg/store/pgstore"
	"github.com/eunmann/tokenbench/pkg/store/sqlitestore"
)

// Store backends selectable with -db.
const (
	BackendPostgres    = pgstore.Postgres
	BackendTimescaleDB = pgstore.TimescaleDB
	BackendSQLite      = sqlitestore.Name
	BackendParquet     = parquetstore.Name
)

// Backends lists every accepted -db value.
var Backends = []string{BackendPostgres, BackendTimescaleDB, BackendSQLite, BackendParquet}

// Config is the complete run configuration.
type Config struct {
	DB            string `yaml:"db"`
	Data          string `yaml:"data"`
	Drop          bool   `yaml:"drop"`
	Batch         int    `yaml:"batch"`
	Language      string `yaml:"language"`
	ProgressEvery int    `yaml:"progress_every"`
	MetricsAddr   string `yaml:"metrics_addr"`

	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
	Parquet  Parquet  `yaml:"parquet"`
	Log      Log      `yaml:"log"`
}

// Postgres configures the postgres and timescaledb backends.
type Postgres struct {
	Host     string `yaml:"host"`
	// Port zero selects the flavor's default port.
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	DSN      string `yaml:"dsn"`
	Method   string `yaml:"method"`
	LogLevel string `yaml:"log_level"`
}

// SQLite configures the sqlite backend.
type SQLite struct {
	Path        string `yaml:"path"`
	Synchronous string `yaml:"synchronous"`
	CacheSizeKB int    `yaml:"cache_size_kb"`
}

// Parquet configures the parquet backend.
type Parquet struct {
	Dir string `yaml:"dir"`
}

// Log configures process logging.
type Log struct {
	Debug bool `yaml:"debug"`
	Human bool `yaml:"human"`
}

// Default returns the built-in settings.
func Default() Config {
	pg := pgstore.DefaultConfig(pgstore.Postgres)
	lite := sqlitestore.DefaultConfig("tokens.db")
	return Config{
		DB:            BackendPostgres,
		Data:          "data",
		Batch:         store.DefaultBatchSize,
		Language:      langcode.Default,
		ProgressEvery: ingest.DefaultProgressEvery,
		Postgres: Postgres{
			Host:     pg.Host,
			User:     pg.User,
			Password: pg.Password,
			SSLMode:  pg.SSLMode,
			Method:   pg.Method,
			LogLevel: pg.LogLevel,
		},
		SQLite: SQLite{
			Path:        lite.Path,
			Synchronous: lite.Synchronous,
			CacheSizeKB: lite.CacheSizeKB,
		},
		Parquet: Parquet{Dir: "parquet"},
	}
}

// Load reads a YAML file over the defaults. Keys the file does not set keep
// their default value; unknown keys are an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML from r over the defaults.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration values, including those of the selected
// backend.
func (c *Config) Validate() error {
	if c.Data == "" {
		return errors.New("data location is required")
	}
	if _, err := langcode.Parse(c.Language); err != nil {
		return err
	}

	ic := c.Ingest()
	if err := ic.Validate(); err != nil {
		return err
	}

	switch c.DB {
	case BackendPostgres, BackendTimescaleDB:
		pc := c.PostgresStore()
		return pc.Validate()
	case BackendSQLite:
		sc := c.SQLiteStore()
		return sc.Validate()
	case BackendParquet:
		pq := c.ParquetStore()
		return pq.Validate()
	default:
		return fmt.Errorf("invalid db %q: must be one of %v", c.DB, Backends)
	}
}

// Port returns the postgres port in effect: the configured one, or the
// selected flavor's default.
func (c *Config) Port() int {
	if c.Postgres.Port != 0 {
		return c.Postgres.Port
	}
	port, err := pgstore.DefaultPort(c.DB)
	if err != nil {
		port, _ = pgstore.DefaultPort(pgstore.Postgres)
	}
	return port
}

// Ingest returns the run driver settings.
func (c *Config) Ingest() ingest.Config {
	lang := c.Language
	if info, err := langcode.Parse(lang); err == nil {
		lang = info.Code
	}
	return ingest.Config{
		Language:      lang,
		BatchSize:     c.Batch,
		ProgressEvery: c.ProgressEvery,
	}
}

// PostgresStore returns the pgstore settings for the selected flavor.
func (c *Config) PostgresStore() pgstore.Config {
	return pgstore.Config{
		Flavor:     c.DB,
		Host:       c.Postgres.Host,
		Port:       c.Port(),
		User:       c.Postgres.User,
		Password:   c.Postgres.Password,
		DBName:     c.Postgres.DBName,
		SSLMode:    c.Postgres.SSLMode,
		ConnString: c.Postgres.DSN,
		Method:     c.Postgres.Method,
		LogLevel:   c.Postgres.LogLevel,
	}
}

// SQLiteStore returns the sqlitestore settings.
func (c *Config) SQLiteStore() sqlitestore.Config {
	return sqlitestore.Config{
		Path:        c.SQLite.Path,
		Synchronous: c.SQLite.Synchronous,
		CacheSizeKB: c.SQLite.CacheSizeKB,
	}
}

// ParquetStore returns the parquetstore settings.
func (c *Config) ParquetStore() parquetstore.Config {
	return parquetstore.Config{Dir: c.Parquet.Dir}
}
