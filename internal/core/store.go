package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrConnection marks store failures that make the connection unusable.
	// Store implementations wrap driver-level I/O errors with it; the
	// importer ends the run when it sees one.
	ErrConnection = errors.New("store connection error")
)

// LedgerStore persists import run records.
type LedgerStore interface {
	CreateImportRun(ctx context.Context, run ImportRun) error
	CheckpointImportRun(ctx context.Context, runID string, c Counters) error
	FinalizeImportRun(ctx context.Context, runID string, status RunStatus, c Counters, errMsg string, completedAt time.Time) error

	// FindCompletedRunByChecksum returns the latest COMPLETED run for a file
	// checksum, or ErrNotFound.
	FindCompletedRunByChecksum(ctx context.Context, checksum string) (ImportRun, error)
}

// Store is the data access surface the importer depends on.
type Store interface {
	LedgerStore

	// Begin starts a transaction for one batch of rows.
	Begin(ctx context.Context) (Tx, error)

	Close() error
}

// Tx is one batch transaction. A failed insert or upsert must leave the
// transaction usable so later rows in the same batch can still commit.
type Tx interface {
	// FindCustomerByLocation returns the id of the customer owning the
	// meter at locationID, or ErrNotFound.
	FindCustomerByLocation(ctx context.Context, locationID string) (string, error)

	// FindCustomerByAccount returns the id of the customer with the given
	// account number, or ErrNotFound.
	FindCustomerByAccount(ctx context.Context, accountNumber string) (string, error)

	InsertCustomer(ctx context.Context, c Customer) error

	// FindMeterByLocation returns the id of the meter at locationID, or
	// ErrNotFound.
	FindMeterByLocation(ctx context.Context, locationID string) (string, error)

	InsertMeter(ctx context.Context, m Meter) error

	// UpsertReadings writes readings keyed by (meter, date). Either every
	// reading is applied or none is.
	UpsertReadings(ctx context.Context, readings []UsageReading, policy ConflictPolicy) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// StoreOpener connects to a store. Called once per run.
type StoreOpener func(ctx context.Context) (Store, error)
