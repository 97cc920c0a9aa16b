// Package postgres implements core.Store on PostgreSQL using a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/meterload/internal/config"
	"github.com/JonMunkholm/meterload/internal/core"
	"github.com/JonMunkholm/meterload/internal/source"
)

// Store is a core.Store backed by a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses cfg, connects and pings the database.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w: %w", core.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w: %w", core.ErrConnection, err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil && u.Path != "" {
		slog.Info("connected to database", "driver", config.DriverPostgres, "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database", "driver", config.DriverPostgres)
	}
	return &Store{pool: pool}, nil
}

// Opener returns a core.StoreOpener that connects with cfg.
func Opener(cfg config.DatabaseConfig) core.StoreOpener {
	return func(ctx context.Context) (core.Store, error) {
		return Open(ctx, cfg)
	}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateImportRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.pool.Exec(ctx, createRunSQL,
		run.ID, string(run.SourceType), run.SourceFileName, run.FileChecksum,
		run.ImportedBy, string(run.Status), run.StartedAt)
	return classify(err)
}

func (s *Store) CheckpointImportRun(ctx context.Context, runID string, c core.Counters) error {
	tag, err := s.pool.Exec(ctx, checkpointRunSQL, runID,
		c.RowsProcessed, c.RowsImported, c.RowsFailed,
		c.CustomersCreated, c.MetersCreated, c.ReadingsWritten)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import run %s: %w", runID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) FinalizeImportRun(ctx context.Context, runID string, status core.RunStatus, c core.Counters, errMsg string, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, finalizeRunSQL, runID, string(status),
		c.RowsProcessed, c.RowsImported, c.RowsFailed,
		c.CustomersCreated, c.MetersCreated, c.ReadingsWritten,
		errMsg, completedAt)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import run %s: %w", runID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) FindCompletedRunByChecksum(ctx context.Context, checksum string) (core.ImportRun, error) {
	var (
		run                core.ImportRun
		sourceType, status string
		completedAt        *time.Time
	)
	err := s.pool.QueryRow(ctx, findCompletedRunSQL, checksum).Scan(
		&run.ID, &sourceType, &run.SourceFileName, &run.FileChecksum, &run.ImportedBy, &status,
		&run.Counters.RowsProcessed, &run.Counters.RowsImported, &run.Counters.RowsFailed,
		&run.Counters.CustomersCreated, &run.Counters.MetersCreated, &run.Counters.ReadingsWritten,
		&run.ErrorMessage, &run.StartedAt, &completedAt,
	)
	if err != nil {
		return core.ImportRun{}, classify(err)
	}
	run.SourceType = source.Format(sourceType)
	run.Status = core.RunStatus(status)
	if completedAt != nil {
		run.CompletedAt = *completedAt
	}
	return run, nil
}

// Begin starts a batch transaction.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	t, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w: %w", core.ErrConnection, err)
	}
	return &tx{tx: t}, nil
}
