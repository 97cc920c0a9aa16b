package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"fail rate", &FailRateError{Failed: 60, Processed: 5000, Rate: 0.012, Max: 0.01}, "RUN001"},
		{"cancelled", fmt.Errorf("read row: %w", context.Canceled), "RUN002"},
		{"postgres duplicate", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"mysql duplicate", errors.New("Error 1062 (23000): Duplicate entry 'ACC-100' for key 'account_number'"), "DB001"},
		{"foreign key", errors.New("violates foreign key constraint"), "DB003"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB004"},
		{"invalid month", errors.New("line 4: RowParseError: invalid date: month: value out of range: 13"), "VAL001"},
		{"negative usage", errors.New("invalid number: usage: value out of range: -1 is negative"), "VAL006"},
		{"bad location", errors.New("location id: value is not numeric: \"abc\""), "VAL005"},
		{"missing columns", errors.New("invalid file format a.csv: missing required columns: Usage"), "VAL004"},
		{"missing file", errors.New("cannot read a.csv: stat a.csv: no such file or directory"), "FILE001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(errors.New("deadlock detected"))
	want := "Database was busy with conflicting operations (Code: DB007). Re-run the import"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}
