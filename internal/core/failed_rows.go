package core

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// failedRowWriter streams failed rows to a CSV file as they happen, so the
// file is complete even when the run aborts.
type failedRowWriter struct {
	file *os.File
	w    *csv.Writer
}

func newFailedRowWriter(path string) (*failedRowWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create failed rows file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Line", "Error Kind", "Reason", "Data"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write failed rows header: %w", err)
	}
	return &failedRowWriter{file: f, w: w}, nil
}

// Write appends one failed row: line, kind, reason, then the raw cells.
func (f *failedRowWriter) Write(row FailedRow) error {
	rec := make([]string, 0, 3+len(row.Data))
	rec = append(rec, strconv.Itoa(row.Line), row.Kind.String(), row.Reason)
	rec = append(rec, row.Data...)
	return f.w.Write(rec)
}

func (f *failedRowWriter) Close() error {
	f.w.Flush()
	if err := f.w.Error(); err != nil {
		f.file.Close()
		return err
	}
	return f.file.Close()
}
