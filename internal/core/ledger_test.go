package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFailRateBreaker(t *testing.T) {
	b := FailRateBreaker{MaxFailRate: 0.01, MinRows: 5000}

	tests := []struct {
		name      string
		processed int
		failed    int
		trips     bool
	}{
		{"nothing processed", 0, 0, false},
		{"below minimum rows", 4999, 4999, false},
		{"at the limit", 5000, 50, false},
		{"over the limit", 5000, 51, true},
		{"large clean file", 1_000_000, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Check(Counters{RowsProcessed: tt.processed, RowsFailed: tt.failed})
			if !tt.trips {
				require.NoError(t, err)
				return
			}
			var fe *FailRateError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tt.failed, fe.Failed)
			require.Equal(t, KindFailRate, KindOf(err))
		})
	}
}

func TestFailRateError_Message(t *testing.T) {
	err := &FailRateError{Failed: 2, Processed: 100, Rate: 0.02, Max: 0.01}
	require.Equal(t, "fail rate 2.00% exceeds maximum 1.00% (2 of 100 rows failed)", err.Error())
	require.Equal(t, "RUN001", MapError(err).Code)
}

func TestLedger(t *testing.T) {
	store := &fakeLedgerStore{}
	l := NewLedger(store)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	run := ImportRun{ID: "run-1", SourceFileName: "usage.csv"}
	require.NoError(t, l.Create(context.Background(), &run))
	require.Equal(t, StatusInProgress, store.created.Status)
	require.Equal(t, fixed, store.created.StartedAt)
	require.True(t, store.created.CompletedAt.IsZero())

	c := Counters{RowsProcessed: 3, RowsImported: 3}
	require.NoError(t, l.Checkpoint(context.Background(), run.ID, c))
	require.Equal(t, c, store.counters)

	require.NoError(t, l.Finalize(context.Background(), run.ID, StatusFailed, c, "boom"))
	require.Equal(t, StatusFailed, store.status)
	require.Equal(t, "boom", store.errMsg)
	require.Equal(t, fixed, store.completed)

	require.Error(t, l.Finalize(context.Background(), run.ID, StatusInProgress, c, ""))
}

func TestLedger_WrapsStoreErrors(t *testing.T) {
	store := &fakeLedgerStore{err: ErrConnection}
	l := NewLedger(store)

	err := l.Create(context.Background(), &ImportRun{ID: "run-1"})
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorContains(t, err, "create import run")
}

func TestFatal(t *testing.T) {
	inner := &ImportError{Kind: KindFailRate, Err: errors.New("x")}
	require.Same(t, inner, fatal(KindStoreConnection, inner).(*ImportError))

	require.Equal(t, KindCanceled, KindOf(fatal(KindStoreConnection, context.Canceled)))
	require.Equal(t, KindStoreConnection, KindOf(fatal(KindInput, ErrConnection)))
	require.Equal(t, KindInput, KindOf(fatal(KindInput, errors.New("bad header"))))
}

func TestCountersFailRate(t *testing.T) {
	require.Zero(t, Counters{}.FailRate())
	require.InDelta(t, 0.25, Counters{RowsProcessed: 4, RowsFailed: 1}.FailRate(), 1e-9)
}
