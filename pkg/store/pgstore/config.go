package pgstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4"
)

// Backend flavors. Both speak the Postgres protocol and differ only in the
// default port.
const (
	Postgres    = "postgres"
	TimescaleDB = "timescaledb"
)

// Insert methods.
const (
	// MethodBatch queues one INSERT per row and sends each chunk as a single
	// pgx.Batch round trip.
	MethodBatch = "batch"
	// MethodCopy streams each chunk with COPY FROM STDIN.
	MethodCopy = "copy"
)

// DefaultPort returns the port a flavor listens on.
func DefaultPort(flavor string) (int, error) {
	switch flavor {
	case Postgres:
		return 5432, nil
	case TimescaleDB:
		return 6543, nil
	default:
		return 0, fmt.Errorf("unknown postgres flavor %q", flavor)
	}
}

// Config holds connection settings for a Postgres-protocol store.
type Config struct {
	// Flavor is Postgres or TimescaleDB.
	Flavor   string
	Host     string
	Port     int
	User     string
	Password string
	// DBName may be empty, in which case the server default for User applies.
	DBName  string
	SSLMode string
	// ConnString, when set, replaces every field above except Flavor.
	ConnString string
	Method     string
	// LogLevel is the pgx driver log level: trace, debug, info, warn, error
	// or none.
	LogLevel string
}

// DefaultConfig returns the local benchmark settings for flavor.
func DefaultConfig(flavor string) Config {
	port, _ := DefaultPort(flavor)
	return Config{
		Flavor:   flavor,
		Host:     "localhost",
		Port:     port,
		User:     "postgres",
		Password: "postgres",
		SSLMode:  "disable",
		Method:   MethodBatch,
		LogLevel: "warn",
	}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if _, err := DefaultPort(c.Flavor); err != nil {
		return err
	}
	switch c.Method {
	case MethodBatch, MethodCopy:
	default:
		return fmt.Errorf("invalid insert method %q: must be %s or %s", c.Method, MethodBatch, MethodCopy)
	}
	if c.LogLevel != "" {
		if _, err := pgx.LogLevelFromString(c.LogLevel); err != nil {
			return fmt.Errorf("invalid pgx log level %q: %w", c.LogLevel, err)
		}
	}
	if c.ConnString != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid postgres port %d", c.Port)
	}
	return nil
}

func (c *Config) values(withPassword bool) map[string]string {
	v := map[string]string{
		"host": c.Host,
		"port": strconv.Itoa(c.Port),
		"user": c.User,
	}
	if withPassword && c.Password != "" {
		v["password"] = c.Password
	}
	if c.DBName != "" {
		v["dbname"] = c.DBName
	}
	if c.SSLMode != "" {
		v["sslmode"] = c.SSLMode
	}
	return v
}

// DSN returns the libpq keyword/value connection string.
func (c *Config) DSN() string {
	if c.ConnString != "" {
		return c.ConnString
	}
	return CreateConnectionString(c.values(true))
}

// Redacted returns a connection description without the password, for logs
// and errors.
func (c *Config) Redacted() string {
	if c.ConnString != "" {
		cfg, err := pgx.ParseConfig(c.ConnString)
		if err != nil {
			return "<unparseable connection string>"
		}
		return fmt.Sprintf("host=%s port=%d user=%s dbname=%s", cfg.Host, cfg.Port, cfg.User, cfg.Database)
	}
	return CreateConnectionString(c.values(false))
}

// CreateConnectionString renders values as libpq keyword/value pairs in key
// order, quoting every value.
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
func CreateConnectionString(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(parts, " ")
}
