package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func reading(line, day int, usage string) Record {
	return Record{Line: line, LocationID: "100", Year: 2024, Month: 3, Day: day, RawUsage: usage}
}

func TestWriter_AddValidates(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"bad month", Record{Line: 2, Year: 2024, Month: 13, Day: 1, RawUsage: "1"}, "invalid date"},
		{"feb 30", Record{Line: 2, Year: 2024, Month: 2, Day: 30, RawUsage: "1"}, "invalid date"},
		{"blank usage", Record{Line: 2, Year: 2024, Month: 2, Day: 1, RawUsage: " "}, "invalid number"},
		{"text usage", Record{Line: 2, Year: 2024, Month: 2, Day: 1, RawUsage: "lots"}, "invalid number"},
		{"negative usage", Record{Line: 2, Year: 2024, Month: 2, Day: 1, RawUsage: "-1"}, "is negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(ConflictUpdate, "CSV_IMPORT")
			err := w.Add("c", "m", tt.rec, "run", nil)
			re := asRowError(err)
			require.NotNil(t, re)
			require.Equal(t, KindRowParse, re.Kind)
			require.ErrorContains(t, err, tt.want)
			require.Zero(t, w.Len())
		})
	}
}

func TestWriter_Flush(t *testing.T) {
	tx := newFakeTx()
	w := NewWriter(ConflictUpdate, "EXCEL_IMPORT")
	require.NoError(t, w.Add("c", "m", reading(2, 1, "1.25"), "run-1", nil))
	require.NoError(t, w.Add("c", "m", reading(3, 2, "2"), "run-1", nil))

	res, err := w.Flush(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, FlushResult{RowsImported: 2, ReadingsWritten: 2}, res)
	require.Equal(t, 1, tx.upsertCall)
	require.Zero(t, w.Len())

	r := tx.readings["m/2024-03-01"]
	require.Equal(t, 1.25, r.UsageCCF)
	require.Equal(t, "EXCEL_IMPORT", r.Source)
	require.Equal(t, "run-1", r.ImportRunID)
}

func TestWriter_FlushEmpty(t *testing.T) {
	tx := newFakeTx()
	res, err := NewWriter(ConflictUpdate, "CSV_IMPORT").Flush(context.Background(), tx)
	require.NoError(t, err)
	require.Zero(t, res)
	require.Zero(t, tx.upsertCall)
}

func TestWriter_DuplicateKeyCollapses(t *testing.T) {
	for _, tt := range []struct {
		policy ConflictPolicy
		want   float64
	}{
		{ConflictUpdate, 9},
		{ConflictIgnore, 1},
	} {
		t.Run(string(tt.policy), func(t *testing.T) {
			tx := newFakeTx()
			w := NewWriter(tt.policy, "CSV_IMPORT")
			require.NoError(t, w.Add("c", "m", reading(2, 1, "1"), "run", nil))
			require.NoError(t, w.Add("c", "m", reading(3, 1, "9"), "run", nil))
			require.Equal(t, 1, w.Len())

			res, err := w.Flush(context.Background(), tx)
			require.NoError(t, err)
			require.Equal(t, 2, res.RowsImported)
			require.Equal(t, 1, res.ReadingsWritten)
			require.Equal(t, tt.want, tx.readings["m/2024-03-01"].UsageCCF)
		})
	}
}

func TestWriter_FallbackIsolatesBadReading(t *testing.T) {
	tx := newFakeTx()
	tx.upsertErr = func(rs []UsageReading) error {
		for _, r := range rs {
			if r.UsageCCF == 666 {
				return errors.New("numeric field overflow")
			}
		}
		return nil
	}
	w := NewWriter(ConflictUpdate, "CSV_IMPORT")
	require.NoError(t, w.Add("c", "m", reading(2, 1, "1"), "run", []string{"a"}))
	require.NoError(t, w.Add("c", "m", reading(3, 2, "666"), "run", []string{"b"}))
	require.NoError(t, w.Add("c", "m", reading(4, 3, "3"), "run", []string{"c"}))

	res, err := w.Flush(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsImported)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 3, res.Failed[0].Line)
	require.Equal(t, KindWrite, res.Failed[0].Kind)
	require.Equal(t, []string{"b"}, res.Failed[0].Data)
	require.Equal(t, 4, tx.upsertCall, "one batch attempt plus one per reading")
}

func TestWriter_ConnectionErrorIsReturned(t *testing.T) {
	tx := newFakeTx()
	tx.upsertErr = func([]UsageReading) error { return fmt.Errorf("write: %w", ErrConnection) }
	w := NewWriter(ConflictUpdate, "CSV_IMPORT")
	require.NoError(t, w.Add("c", "m", reading(2, 1, "1"), "run", nil))

	_, err := w.Flush(context.Background(), tx)
	require.ErrorIs(t, err, ErrConnection)
	require.Zero(t, w.Len())
}
