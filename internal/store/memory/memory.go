// Package memory is an in-process core.Store used for dry runs and tests.
//
// It enforces the same uniqueness and foreign key rules as the SQL stores
// and keeps a transaction's writes private until Commit. Data survives Close
// so callers can inspect what a run would have written.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/meterload/internal/core"
)

// Hooks inject failures. A nil hook never fails.
type Hooks struct {
	InsertCustomer func(core.Customer) error
	InsertMeter    func(core.Meter) error
	UpsertReading  func(core.UsageReading) error
	Commit         func() error
	Checkpoint     func(core.Counters) error
}

type readingKey struct {
	meterID string
	date    time.Time
}

// tables is one consistent set of rows plus its indexes.
type tables struct {
	customers       map[string]core.Customer // by id
	customerByAcct  map[string]string
	meters          map[string]core.Meter // by id
	meterByLocation map[string]string
	readings        map[readingKey]core.UsageReading
}

func newTables() tables {
	return tables{
		customers:       make(map[string]core.Customer),
		customerByAcct:  make(map[string]string),
		meters:          make(map[string]core.Meter),
		meterByLocation: make(map[string]string),
		readings:        make(map[readingKey]core.UsageReading),
	}
}

// Store holds committed rows.
type Store struct {
	mu     sync.Mutex
	data   tables
	runs   map[string]core.ImportRun
	opens  int
	closes int

	Hooks Hooks
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newTables(), runs: make(map[string]core.ImportRun)}
}

// Opener returns a core.StoreOpener that hands out s.
func (s *Store) Opener() core.StoreOpener {
	return func(context.Context) (core.Store, error) {
		s.mu.Lock()
		s.opens++
		s.mu.Unlock()
		return s, nil
	}
}

// Close records the call; data is kept.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called.
func (s *Store) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Customers returns committed customers ordered by account number.
func (s *Store) Customers() []core.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Customer, 0, len(s.data.customers))
	for _, c := range s.data.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out
}

// Meters returns committed meters ordered by location.
func (s *Store) Meters() []core.Meter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Meter, 0, len(s.data.meters))
	for _, m := range s.data.meters {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalLocationID < out[j].ExternalLocationID })
	return out
}

// Readings returns committed readings ordered by location then date.
func (s *Store) Readings() []core.UsageReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.UsageReading, 0, len(s.data.readings))
	for _, r := range s.data.readings {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExternalLocationID != out[j].ExternalLocationID {
			return out[i].ExternalLocationID < out[j].ExternalLocationID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Run returns an import run by id.
func (s *Store) Run(id string) (core.ImportRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}

func (s *Store) CreateImportRun(_ context.Context, run core.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint \"import_runs_pkey\"")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *Store) CheckpointImportRun(_ context.Context, runID string, c core.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Hooks.Checkpoint != nil {
		if err := s.Hooks.Checkpoint(c); err != nil {
			return err
		}
	}
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("import run %s: %w", runID, core.ErrNotFound)
	}
	run.Counters = c
	s.runs[runID] = run
	return nil
}

func (s *Store) FinalizeImportRun(_ context.Context, runID string, status core.RunStatus, c core.Counters, errMsg string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("import run %s: %w", runID, core.ErrNotFound)
	}
	run.Status = status
	run.Counters = c
	run.ErrorMessage = errMsg
	run.CompletedAt = completedAt
	s.runs[runID] = run
	return nil
}

func (s *Store) FindCompletedRunByChecksum(_ context.Context, checksum string) (core.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best core.ImportRun
	found := false
	for _, r := range s.runs {
		if r.FileChecksum != checksum || r.Status != core.StatusCompleted {
			continue
		}
		if !found || r.CompletedAt.After(best.CompletedAt) {
			best, found = r, true
		}
	}
	if !found {
		return core.ImportRun{}, core.ErrNotFound
	}
	return best, nil
}

// Begin starts a transaction whose writes stay private until Commit.
func (s *Store) Begin(context.Context) (core.Tx, error) {
	return &tx{s: s, staged: newTables()}, nil
}
