package core

import (
	"context"
	"fmt"
	"time"
)

// Ledger records import runs. A run is created IN_PROGRESS, may have its
// counters checkpointed any number of times, and is finalized once with a
// terminal status.
type Ledger struct {
	store LedgerStore
	now   func() time.Time
}

// NewLedger creates a Ledger backed by store.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Create inserts run with status IN_PROGRESS and a start time.
func (l *Ledger) Create(ctx context.Context, run *ImportRun) error {
	run.Status = StatusInProgress
	run.StartedAt = l.now().UTC()
	run.CompletedAt = time.Time{}
	if err := l.store.CreateImportRun(ctx, *run); err != nil {
		return fmt.Errorf("create import run: %w", err)
	}
	return nil
}

// Checkpoint saves intermediate counters without touching status.
func (l *Ledger) Checkpoint(ctx context.Context, runID string, c Counters) error {
	if err := l.store.CheckpointImportRun(ctx, runID, c); err != nil {
		return fmt.Errorf("checkpoint import run: %w", err)
	}
	return nil
}

// Finalize records the terminal status, final counters and error text.
func (l *Ledger) Finalize(ctx context.Context, runID string, status RunStatus, c Counters, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize import run: status %s is not terminal", status)
	}
	if err := l.store.FinalizeImportRun(ctx, runID, status, c, errMsg, l.now().UTC()); err != nil {
		return fmt.Errorf("finalize import run: %w", err)
	}
	return nil
}
