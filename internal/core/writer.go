package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/meterload/internal/normalize"
)

type readingKey struct {
	meterID string
	date    time.Time
}

// contributor is a source row whose reading sits in the buffer.
type contributor struct {
	line int
	data []string
}

type pendingReading struct {
	reading UsageReading
	rows    []contributor
}

// FlushResult summarizes one Flush.
type FlushResult struct {
	RowsImported    int
	ReadingsWritten int
	Failed          []FailedRow
}

// Writer buffers readings for a batch and upserts them on Flush.
//
// Two rows for the same meter and date within one batch collapse to the
// later value, matching what a second upsert would have done.
type Writer struct {
	policy  ConflictPolicy
	source  string
	pending []pendingReading
	byKey   map[readingKey]int
	newID   func() string
}

// NewWriter creates a Writer tagging readings with sourceTag.
func NewWriter(policy ConflictPolicy, sourceTag string) *Writer {
	return &Writer{
		policy: policy,
		source: sourceTag,
		byKey:  make(map[readingKey]int),
		newID:  uuid.NewString,
	}
}

// Len returns the number of buffered readings.
func (w *Writer) Len() int { return len(w.pending) }

// Add validates rec's date and usage and buffers the reading.
func (w *Writer) Add(customerID, meterID string, rec Record, runID string, data []string) error {
	date, err := normalize.Date(rec.Year, rec.Month, rec.Day)
	if err != nil {
		return &RowError{Kind: KindRowParse, Line: rec.Line, Err: fmt.Errorf("invalid date: %w", err)}
	}
	usage, err := normalize.Usage(rec.RawUsage)
	if err != nil {
		return &RowError{Kind: KindRowParse, Line: rec.Line, Err: fmt.Errorf("invalid number: %w", err)}
	}

	r := UsageReading{
		ID:                 w.newID(),
		CustomerID:         customerID,
		MeterID:            meterID,
		ExternalLocationID: rec.LocationID,
		Year:               rec.Year,
		Month:              rec.Month,
		Day:                rec.Day,
		Date:               date,
		UsageCCF:           usage,
		Source:             w.source,
		ImportRunID:        runID,
	}
	row := contributor{line: rec.Line, data: data}

	key := readingKey{meterID: meterID, date: date}
	if i, ok := w.byKey[key]; ok {
		if w.policy == ConflictUpdate {
			r.ID = w.pending[i].reading.ID
			w.pending[i].reading = r
		}
		w.pending[i].rows = append(w.pending[i].rows, row)
		return nil
	}

	w.byKey[key] = len(w.pending)
	w.pending = append(w.pending, pendingReading{reading: r, rows: []contributor{row}})
	return nil
}

// Flush upserts the buffered readings inside tx and empties the buffer.
//
// When the batch upsert is rejected each reading is retried alone so a bad
// reading fails only its own rows. Only connection-level errors are returned.
func (w *Writer) Flush(ctx context.Context, tx Tx) (FlushResult, error) {
	var res FlushResult
	if len(w.pending) == 0 {
		return res, nil
	}
	defer w.reset()

	batch := make([]UsageReading, len(w.pending))
	for i, p := range w.pending {
		batch[i] = p.reading
	}

	err := tx.UpsertReadings(ctx, batch, w.policy)
	if err == nil {
		for _, p := range w.pending {
			res.ReadingsWritten++
			res.RowsImported += len(p.rows)
		}
		return res, nil
	}
	if isFatal(err) {
		return res, fmt.Errorf("upsert readings: %w", err)
	}

	for _, p := range w.pending {
		err := tx.UpsertReadings(ctx, []UsageReading{p.reading}, w.policy)
		if err == nil {
			res.ReadingsWritten++
			res.RowsImported += len(p.rows)
			continue
		}
		if isFatal(err) {
			return res, fmt.Errorf("upsert reading: %w", err)
		}
		for _, row := range p.rows {
			res.Failed = append(res.Failed, FailedRow{
				Line:   row.line,
				Kind:   KindWrite,
				Reason: fmt.Sprintf("write reading: %v", err),
				Data:   row.data,
			})
		}
	}
	return res, nil
}

func (w *Writer) reset() {
	w.pending = w.pending[:0]
	clear(w.byKey)
}
