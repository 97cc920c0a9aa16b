package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

type csvSource struct {
	file    *os.File
	counter *countingReader
	reader  *csv.Reader
	index   columnIndex
}

func openCSV(path string, size int64, opts Options) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	stream, counter := wrapForStreaming(f, size)
	r := csv.NewReader(stream)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Path: path, Reason: "file is empty"}
		}
		return nil, &IOError{Path: path, Err: err}
	}

	idx, err := buildIndex(path, header, opts)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &csvSource{file: f, counter: counter, reader: r, index: idx}, nil
}

func (s *csvSource) Next() (Row, error) {
	for {
		rec, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		if err != nil {
			return Row{}, fmt.Errorf("read csv: %w", err)
		}
		if isBlankRow(rec) {
			continue
		}
		line, _ := s.reader.FieldPos(0)
		return Row{line: line, cells: rec, index: s.index}, nil
	}
}

func (s *csvSource) Progress() int { return s.counter.Percent() }

func (s *csvSource) Close() error { return s.file.Close() }
