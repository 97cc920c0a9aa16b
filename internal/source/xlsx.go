package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/xuri/excelize/v2"
)

type xlsxSource struct {
	file  *excelize.File
	rows  *excelize.Rows
	index columnIndex
	line  int
}

func openXLSX(path string, opts Options) (Source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, &IOError{Path: path, Err: err}
		}
		return nil, &FormatError{Path: path, Reason: err.Error()}
	}

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, &FormatError{Path: path, Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("sheet %q: %v", sheet, err)}
	}

	s := &xlsxSource{file: f, rows: rows}
	header, err := s.read()
	if err != nil {
		s.Close()
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("sheet %q is empty", sheet)}
		}
		return nil, &IOError{Path: path, Err: err}
	}

	idx, err := buildIndex(path, header, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.index = idx
	return s, nil
}

// read returns the next sheet row, blank or not.
func (s *xlsxSource) read() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	s.line++
	return s.rows.Columns(excelize.Options{RawCellValue: true})
}

func (s *xlsxSource) Next() (Row, error) {
	for {
		cells, err := s.read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		if err != nil {
			return Row{}, fmt.Errorf("read sheet row %d: %w", s.line, err)
		}
		if isBlankRow(cells) {
			continue
		}
		return Row{line: s.line, cells: cells, index: s.index}, nil
	}
}

// Progress is unknown for spreadsheets; rows are decompressed on demand.
func (s *xlsxSource) Progress() int { return 0 }

func (s *xlsxSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
