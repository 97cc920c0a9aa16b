// Package mysql implements core.Store on MySQL through database/sql and
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/JonMunkholm/meterload/internal/config"
	"github.com/JonMunkholm/meterload/internal/core"
	"github.com/JonMunkholm/meterload/internal/source"
)

// Store is a core.Store backed by a *sql.DB pool.
type Store struct {
	db *sql.DB
}

// dsnConfig parses the DSN and forces the settings the store relies on.
func dsnConfig(cfg config.DatabaseConfig) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	// UPDATE reports matched rows, not changed rows
	mc.ClientFoundRows = true
	if cfg.ConnectTimeout > 0 {
		mc.Timeout = cfg.ConnectTimeout
	}
	return mc, nil
}

// Open builds the pool from cfg and pings the server.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	mc, err := dsnConfig(cfg)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", core.ErrConnection, err)
	}

	slog.Info("connected to database", "driver", config.DriverMySQL, "name", mc.DBName)
	return &Store{db: db}, nil
}

// Opener returns a core.StoreOpener that connects with cfg.
func Opener(cfg config.DatabaseConfig) core.StoreOpener {
	return func(ctx context.Context) (core.Store, error) {
		return Open(ctx, cfg)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateImportRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.db.ExecContext(ctx, createRunSQL,
		run.ID, string(run.SourceType), run.SourceFileName, run.FileChecksum,
		run.ImportedBy, string(run.Status), run.StartedAt)
	return classify(err)
}

func (s *Store) CheckpointImportRun(ctx context.Context, runID string, c core.Counters) error {
	res, err := s.db.ExecContext(ctx, checkpointRunSQL,
		c.RowsProcessed, c.RowsImported, c.RowsFailed,
		c.CustomersCreated, c.MetersCreated, c.ReadingsWritten,
		runID)
	return checkAffected(runID, res, err)
}

func (s *Store) FinalizeImportRun(ctx context.Context, runID string, status core.RunStatus, c core.Counters, errMsg string, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, finalizeRunSQL, string(status),
		c.RowsProcessed, c.RowsImported, c.RowsFailed,
		c.CustomersCreated, c.MetersCreated, c.ReadingsWritten,
		errMsg, completedAt, runID)
	return checkAffected(runID, res, err)
}

func checkAffected(runID string, res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return fmt.Errorf("import run %s: %w", runID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) FindCompletedRunByChecksum(ctx context.Context, checksum string) (core.ImportRun, error) {
	var (
		run                core.ImportRun
		sourceType, status string
		completedAt        sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, findCompletedRunSQL, checksum).Scan(
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
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return run, nil
}

func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w: %w", core.ErrConnection, err)
	}
	return &tx{tx: t}, nil
}
