// Package source reads usage rows from CSV and spreadsheet files.
//
// A Source is a single forward pass over a file. Opening the same path again
// yields a fresh pass; nothing is written back to the file, so multi-pass
// imports simply call Open once per pass.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies the container format of an input file.
type Format string

const (
	FormatCSV  Format = "CSV"
	FormatXLSX Format = "XLSX"
)

// Source yields rows in file order.
type Source interface {
	// Next returns the next non-blank data row, or io.EOF when exhausted.
	Next() (Row, error)

	// Progress reports percent of the file consumed, or 0 when unknown.
	Progress() int

	Close() error
}

// Options controls how a file is opened.
type Options struct {
	// Sheet selects a spreadsheet tab; empty means the first sheet.
	Sheet string

	// Positional reads columns by their fixed position. The first row is
	// still treated as a header and skipped.
	Positional bool
}

// FormatError reports a file whose structure cannot be imported.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "invalid file format: " + e.Reason
	}
	return fmt.Sprintf("invalid file format %s: %s", e.Path, e.Reason)
}

// IOError reports a file that cannot be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Row is one data row with access by column.
type Row struct {
	line  int
	cells []string
	index columnIndex
}

// NewRow builds a Row from cells laid out in the positional order. It is
// used by tests and callers that already hold parsed values.
func NewRow(line int, cells []string) Row {
	return Row{line: line, cells: cells, index: positionalIndex()}
}

// Get returns the raw cell for a column, or "" when absent.
func (r Row) Get(c Column) string {
	pos, ok := r.index[c]
	if !ok || pos >= len(r.cells) {
		return ""
	}
	return r.cells[pos]
}

// Line is the 1-based line (or sheet row) number of the row.
func (r Row) Line() int { return r.line }

// Values returns the raw cells in file order.
func (r Row) Values() []string { return r.cells }

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", &FormatError{Path: path, Reason: fmt.Sprintf("unsupported extension %q", filepath.Ext(path))}
	}
}

// Open opens path and validates its header.
func Open(path string, opts Options) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &IOError{Path: path, Err: errors.New("is a directory")}
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		return openXLSX(path, opts)
	default:
		return openCSV(path, info.Size(), opts)
	}
}

// buildIndex turns a header row into a column index per opts.
func buildIndex(path string, header []string, opts Options) (columnIndex, error) {
	if opts.Positional {
		return positionalIndex(), nil
	}
	idx, err := indexHeader(header)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return idx, nil
}

// isBlankRow reports whether every cell is empty after trimming.
func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
