package core

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/meterload/internal/normalize"
	"github.com/JonMunkholm/meterload/internal/source"
)

// Fixed attribute values for entities created by an import.
const (
	MeterTypeStandard = "STANDARD"
	MeterStatusActive = "ACTIVE"
	EmailDomain       = "hydrospark.com"
)

// RunStatus is the persisted status of an import run.
type RunStatus string

const (
	StatusInProgress RunStatus = "IN_PROGRESS"
	StatusCompleted  RunStatus = "COMPLETED"
	StatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether s ends a run.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunState is the in-process state of an Importer.
type RunState int

const (
	StateNotStarted RunState = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Mode selects how many passes an import makes over the file.
type Mode string

const (
	ModeSingle  Mode = "single"
	ModeTwoPass Mode = "two_pass"
)

// ConflictPolicy decides what happens when a reading already exists for the
// same meter and date.
type ConflictPolicy string

const (
	// ConflictUpdate refreshes usage, source and run id in place.
	ConflictUpdate ConflictPolicy = "update"

	// ConflictIgnore keeps the existing reading untouched.
	ConflictIgnore ConflictPolicy = "ignore"
)

// Customer is a billed party, created on first sight of its location id.
type Customer struct {
	ID                 string
	AccountNumber      string
	ExternalLocationID string
	FirstName          string
	LastName           string
	BusinessName       string
	Email              string
	Phone              string
	ServiceAddress     normalize.Address
	MailingAddress     normalize.Address
	Type               normalize.CustomerType
	CycleNumber        int
	Active             bool
}

// Meter is a service point, one per external location id.
type Meter struct {
	ID                 string
	CustomerID         string
	ExternalLocationID string
	MeterNumber        string
	ServiceAddress     normalize.Address
	FacilityName       string
	MeterType          string
	Status             string
}

// UsageReading is one day of usage for a meter. Unique on (MeterID, Date).
type UsageReading struct {
	ID                 string
	CustomerID         string
	MeterID            string
	ExternalLocationID string
	Year               int
	Month              int
	Day                int
	Date               time.Time
	UsageCCF           float64
	Source             string
	ImportRunID        string
}

// ImportRun is the ledger row describing one execution.
type ImportRun struct {
	ID             string
	SourceType     source.Format
	SourceFileName string
	FileChecksum   string
	ImportedBy     string
	Status         RunStatus
	Counters       Counters
	ErrorMessage   string
	StartedAt      time.Time
	CompletedAt    time.Time // Zero while IN_PROGRESS
}

// Counters tallies the outcome of a run.
type Counters struct {
	RowsProcessed    int
	RowsImported     int
	RowsFailed       int
	CustomersCreated int
	MetersCreated    int
	ReadingsWritten  int
}

// FailRate returns failed/processed, or 0 before any row is processed.
func (c Counters) FailRate() float64 {
	if c.RowsProcessed == 0 {
		return 0
	}
	return float64(c.RowsFailed) / float64(c.RowsProcessed)
}

// LogValue implements slog.LogValuer for structured logging.
func (c Counters) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("processed", c.RowsProcessed),
		slog.Int("imported", c.RowsImported),
		slog.Int("failed", c.RowsFailed),
		slog.Int("customers_created", c.CustomersCreated),
		slog.Int("meters_created", c.MetersCreated),
		slog.Int("readings_written", c.ReadingsWritten),
	)
}

// FailedRow describes a row that was not imported.
type FailedRow struct {
	Line   int
	Kind   ErrorKind
	Reason string
	Data   []string
}

// Result is the outcome of Importer.Run.
type Result struct {
	RunID      string
	FileName   string
	Status     RunStatus
	Counters   Counters
	Failures   map[ErrorKind]int // Failed rows by kind
	FailedRows []FailedRow       // First Options.MaxFailedSamples failures
	Duration   time.Duration
	Err        error // Non-nil when Status is FAILED
}

// sourceTag labels readings with the container format they came from.
func sourceTag(f source.Format) string {
	if f == source.FormatXLSX {
		return "EXCEL_IMPORT"
	}
	return "CSV_IMPORT"
}
