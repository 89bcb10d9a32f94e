package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/eunmann/tokenbench/pkg/store"
	"github.com/eunmann/tokenbench/pkg/tokens"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

func TestDefaultPort(t *testing.T) {
	tests := []struct {
		flavor  string
		want    int
		wantErr bool
	}{
		{flavor: Postgres, want: 5432},
		{flavor: TimescaleDB, want: 6543},
		{flavor: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DefaultPort(tt.flavor)
		if (err != nil) != tt.wantErr {
			t.Errorf("DefaultPort(%q) error = %v, wantErr %v", tt.flavor, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("DefaultPort(%q) = %d, want %d", tt.flavor, got, tt.want)
		}
	}
}

func TestCreateConnectionString(t *testing.T) {
	got := CreateConnectionString(map[string]string{
		"user":     "postgres",
		"host":     "localhost",
		"password": `it's\secret`,
		"port":     "5432",
	})
	want := `host='localhost' password='it\'s\\secret' port='5432' user='postgres'`
	if got != want {
		t.Errorf("CreateConnectionString =\n%s\nwant\n%s", got, want)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig(TimescaleDB)
	cfg.DBName = "bench"

	dsn := cfg.DSN()
	for _, want := range []string{"host='localhost'", "port='6543'", "user='postgres'", "password='postgres'", "dbname='bench'", "sslmode='disable'"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN missing %s: %s", want, dsn)
		}
	}

	if red := cfg.Redacted(); strings.Contains(red, "password") {
		t.Errorf("Redacted leaked password: %s", red)
	}

	cfg.ConnString = "postgres://u:pw@db.example:7000/x"
	if cfg.DSN() != cfg.ConnString {
		t.Errorf("DSN should prefer ConnString, got %s", cfg.DSN())
	}
	red := cfg.Redacted()
	if strings.Contains(red, "pw") || !strings.Contains(red, "port=7000") {
		t.Errorf("unexpected redacted connection string %q", red)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "copy method", mutate: func(c *Config) { c.Method = MethodCopy }},
		{name: "unknown method", mutate: func(c *Config) { c.Method = "bulk" }, wantErr: true},
		{name: "unknown flavor", mutate: func(c *Config) { c.Flavor = "oracle" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "no host", mutate: func(c *Config) { c.Host = "" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "conn string skips host", mutate: func(c *Config) { c.Host = ""; c.ConnString = "host=x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(Postgres)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code      string
		wantClass string
	}{
		{pgerrcode.UniqueViolation, "integrity constraint violation"},
		{pgerrcode.UndefinedTable, "syntax error or access rule violation"},
		{pgerrcode.NumericValueOutOfRange, "data exception"},
		{pgerrcode.DiskFull, "insufficient resources"},
		{pgerrcode.AdminShutdown, "operator intervention"},
		{"ZZ001", "class ZZ"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			pgErr := &pgconn.PgError{Severity: "ERROR", Code: tt.code, Message: "boom"}
			err := classify(fmt.Errorf("exec: %w", pgErr))

			var se *SQLStateError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SQLStateError, got %T", err)
			}
			if se.Code != tt.code || se.Class != tt.wantClass {
				t.Errorf("got code %q class %q, want %q %q", se.Code, se.Class, tt.code, tt.wantClass)
			}
			if !errors.Is(err, pgErr) {
				t.Error("expected PgError to remain in the chain")
			}
		})
	}

	plain := errors.New("network down")
	if got := classify(plain); got != plain {
		t.Errorf("classify changed a non-server error: %v", got)
	}
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestIsUndefinedTable(t *testing.T) {
	if !IsUndefinedTable(&pgconn.PgError{Code: pgerrcode.UndefinedTable}) {
		t.Error("expected undefined table to match")
	}
	if IsUndefinedTable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}) {
		t.Error("unique violation must not match")
	}
	if IsUndefinedTable(errors.New("x")) {
		t.Error("plain error must not match")
	}
}

func TestOpenUnreachable(t *testing.T) {
	cfg := DefaultConfig(Postgres)
	cfg.Host = "127.0.0.1"
	cfg.Port = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, cfg)
	var ce *store.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *store.ConnectionError, got %T: %v", err, err)
	}
	if ce.Backend != Postgres {
		t.Errorf("Backend = %q, want postgres", ce.Backend)
	}
	if strings.Contains(ce.Target, "password") {
		t.Errorf("Target leaked password: %s", ce.Target)
	}
}

// TestIntegration runs against a live server named by TOKENBENCH_TEST_PG_DSN.
func TestIntegration(t *testing.T) {
	dsn := os.Getenv("TOKENBENCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TOKENBENCH_TEST_PG_DSN not set")
	}

	for _, method := range []string{MethodBatch, MethodCopy} {
		t.Run(method, func(t *testing.T) {
			ctx := context.Background()
			cfg := DefaultConfig(Postgres)
			cfg.ConnString = dsn
			cfg.Method = method

			s, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close(ctx)

			if err := s.Prepare(ctx, true); err != nil {
				t.Fatalf("Prepare: %v", err)
			}

			rows := []tokens.Row{
				{VolumeID: "v1", Token: "cat", PartOfSpeech: "NN", Count: 5},
				{VolumeID: "v1", Token: "dog", PartOfSpeech: "NN", Count: 2},
				{VolumeID: "v1", Token: "run", PartOfSpeech: "VB", Count: 1},
			}

			tx, err := s.Begin(ctx)
			if err != nil {
				t.Fatalf("Begin: %v", err)
			}
			if _, err := store.InsertRows(ctx, tx, rows, 2); err != nil {
				t.Fatalf("InsertRows: %v", err)
			}
			if err := tx.Rollback(ctx); err != nil {
				t.Fatalf("Rollback: %v", err)
			}
			if n, _ := s.Count(ctx); n != 0 {
				t.Errorf("Count after rollback = %d, want 0", n)
			}

			tx, err = s.Begin(ctx)
			if err != nil {
				t.Fatalf("Begin: %v", err)
			}
			if _, err := store.InsertRows(ctx, tx, rows, 2); err != nil {
				t.Fatalf("InsertRows: %v", err)
			}
			if err := tx.Commit(ctx); err != nil {
				t.Fatalf("Commit: %v", err)
			}
			if n, _ := s.Count(ctx); n != 3 {
				t.Errorf("Count after commit = %d, want 3", n)
			}
		})
	}
}
