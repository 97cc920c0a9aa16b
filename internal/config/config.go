// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all importer configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the store implementation: postgres, mysql or memory (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string (required unless Driver is memory)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the initial connect and ping (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// ImportConfig holds row processing settings.
type ImportConfig struct {
	// BatchSize is the number of rows per transaction (default: 5000)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"5000"`

	// MaxFailRate aborts the run when failed/processed exceeds it (default: 0.01)
	MaxFailRate float64 `env:"IMPORT_MAX_FAIL_RATE" default:"0.01"`

	// MinRowsBeforeAbort is the row count before the fail rate is enforced (default: 5000)
	MinRowsBeforeAbort int `env:"IMPORT_MIN_ROWS_BEFORE_ABORT" default:"5000"`

	// Mode is single (one pass) or two_pass (entities first, readings second)
	Mode string `env:"IMPORT_MODE" default:"single"`

	// Sheet is the spreadsheet tab to read; empty selects the first sheet
	Sheet string `env:"IMPORT_SHEET"`

	// Positional reads columns by fixed position instead of by header name
	Positional bool `env:"IMPORT_POSITIONAL" default:"false"`

	// ConflictPolicy decides what happens to an existing reading: update or ignore
	ConflictPolicy string `env:"IMPORT_CONFLICT_POLICY" default:"update"`

	// AccountPrefix is prepended to the location id to form account numbers
	AccountPrefix string `env:"IMPORT_ACCOUNT_PREFIX" default:"ACC-"`

	// ImportedBy is recorded on the import run (default: SYSTEM)
	ImportedBy string `env:"IMPORT_IMPORTED_BY" default:"SYSTEM"`

	// DefaultCycle is used when the cycle number is blank or unparseable (default: 1)
	DefaultCycle int `env:"IMPORT_DEFAULT_CYCLE" default:"1"`

	// CheckpointLedger writes counters to the import run after every batch
	CheckpointLedger bool `env:"IMPORT_CHECKPOINT_LEDGER" default:"true"`

	// EarlyAbort evaluates the fail-rate breaker at batch boundaries
	EarlyAbort bool `env:"IMPORT_EARLY_ABORT" default:"true"`

	// FailedRowsPath, when set, receives a CSV of every failed row
	FailedRowsPath string `env:"IMPORT_FAILED_ROWS_PATH"`

	// ProgressInterval is the minimum time between progress log lines (default: 5s)
	ProgressInterval time.Duration `env:"IMPORT_PROGRESS_INTERVAL" default:"5s"`

	// Timeout bounds a whole run; zero disables it
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"0s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds run metrics settings.
type MetricsConfig struct {
	// PushgatewayURL receives run metrics at the end of each run; empty disables
	PushgatewayURL string `env:"METRICS_PUSHGATEWAY_URL"`

	// Job is the pushgateway job label (default: usage_import)
	Job string `env:"METRICS_JOB" default:"usage_import"`
}
