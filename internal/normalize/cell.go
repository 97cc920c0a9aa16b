package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBlank reports a required cell with no value.
	ErrBlank = errors.New("value is blank")

	// ErrNotNumeric reports a cell that does not hold a number.
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrOutOfRange reports a number outside the accepted range.
	ErrOutOfRange = errors.New("value out of range")
)

// numericRegex matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// nullLike holds cell values that spreadsheets and dataframes use for "no value".
var nullLike = map[string]bool{
	"":     true,
	"NULL": true,
	"NONE": true,
	"NAN":  true,
	"N/A":  true,
	"NA":   true,
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// IsBlank reports whether a cell is empty or holds a null marker.
func IsBlank(s string) bool {
	return nullLike[strings.ToUpper(CleanCell(s))]
}

// Number parses a numeric cell, accepting thousands separators.
func Number(s string) (float64, error) {
	if IsBlank(s) {
		return 0, ErrBlank
	}
	c := strings.ReplaceAll(CleanCell(s), ",", "")
	if !numericRegex.MatchString(c) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	f, err := strconv.ParseFloat(c, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return f, nil
}

// Int parses a whole-number cell. Spreadsheet floats such as "100.0" are
// accepted; values with a fractional part are not.
func Int(s string) (int, error) {
	f, err := Number(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrNotNumeric, s)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}
	return int(f), nil
}

// IntOr parses a whole-number cell, returning def when it is blank or invalid.
func IntOr(s string, def int) int {
	i, err := Int(s)
	if err != nil {
		return def
	}
	return i
}

// LocationID returns the canonical form of an external location id: the
// decimal digits of a non-negative 64-bit whole number ("100.0" becomes
// "100"). Digits are parsed directly so ids beyond 2^53 keep their value.
func LocationID(s string) (string, error) {
	if IsBlank(s) {
		return "", fmt.Errorf("location id: %w", ErrBlank)
	}
	c := strings.ReplaceAll(CleanCell(s), ",", "")
	if !numericRegex.MatchString(c) {
		return "", fmt.Errorf("location id: %w: %q", ErrNotNumeric, s)
	}
	if strings.ContainsAny(c, "eE") {
		// Spreadsheet exponent form such as "1.5E+3".
		i, err := Int(c)
		if err != nil {
			return "", fmt.Errorf("location id: %w", err)
		}
		c = strconv.Itoa(i)
	}
	if whole, frac, ok := strings.Cut(c, "."); ok {
		if strings.Trim(frac, "0") != "" {
			return "", fmt.Errorf("location id: %w: %q is not a whole number", ErrNotNumeric, s)
		}
		c = whole
	}

	n, err := strconv.ParseInt(c, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return "", fmt.Errorf("location id: %w: %q", ErrOutOfRange, s)
	}
	if err != nil {
		return "", fmt.Errorf("location id: %w: %q", ErrNotNumeric, s)
	}
	if n < 0 {
		return "", fmt.Errorf("location id: %w: %q", ErrOutOfRange, s)
	}
	return strconv.FormatInt(n, 10), nil
}

// Usage parses a usage volume. Negative values are rejected.
func Usage(s string) (float64, error) {
	f, err := Number(s)
	if err != nil {
		return 0, fmt.Errorf("usage: %w", err)
	}
	if f < 0 {
		return 0, fmt.Errorf("usage: %w: %g is negative", ErrOutOfRange, f)
	}
	return f, nil
}

// Date composes a calendar date, rejecting components that time.Date would
// silently normalize (month 13, February 30).
func Date(year, month, day int) (time.Time, error) {
	if year < 1900 || year > 9999 {
		return time.Time{}, fmt.Errorf("year: %w: %d", ErrOutOfRange, year)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month: %w: %d", ErrOutOfRange, month)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || d.Day() != day {
		return time.Time{}, fmt.Errorf("day: %w: %04d-%02d-%02d", ErrOutOfRange, year, month, day)
	}
	return d, nil
}
