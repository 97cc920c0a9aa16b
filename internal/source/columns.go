package source

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/meterload/internal/normalize"
)

// Column names a domain field of an input row.
type Column string

const (
	CustomerName   Column = "Customer Name"
	MailingAddress Column = "Mailing Address"
	LocationID     Column = "Location ID"
	CustomerType   Column = "Customer Type"
	CycleNumber    Column = "Cycle Number"
	Phone          Column = "Phone"
	BusinessName   Column = "Business Name"
	FacilityName   Column = "Facility Name"
	Year           Column = "Year"
	Month          Column = "Month"
	Day            Column = "Day"
	Usage          Column = "Usage"
)

// FieldType is the expected data type of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldNumber
)

// ColumnSpec describes how a column is located and parsed.
type ColumnSpec struct {
	Column   Column
	Aliases  []string  // Alternate header spellings
	Type     FieldType // Expected data type
	Required bool      // Header must be present
	Position int       // Index in the fixed positional layout
}

// Columns lists every column in positional order.
var Columns = []ColumnSpec{
	{Column: CustomerName, Type: FieldText, Position: 0},
	{Column: MailingAddress, Type: FieldText, Position: 1},
	{Column: LocationID, Aliases: []string{"Location", "Location Id"}, Type: FieldInteger, Required: true, Position: 2},
	{Column: CustomerType, Type: FieldText, Position: 3},
	{Column: CycleNumber, Aliases: []string{"Cycle"}, Type: FieldInteger, Position: 4},
	{Column: Phone, Aliases: []string{"Customer Phone Number", "Phone Number"}, Type: FieldText, Position: 5},
	{Column: BusinessName, Type: FieldText, Position: 6},
	{Column: FacilityName, Type: FieldText, Position: 7},
	{Column: Year, Type: FieldInteger, Required: true, Position: 8},
	{Column: Month, Type: FieldInteger, Required: true, Position: 9},
	{Column: Day, Type: FieldInteger, Required: true, Position: 10},
	{Column: Usage, Aliases: []string{"Daily Water Usage (CCF)", "Usage (CCF)", "Daily Usage"}, Type: FieldNumber, Required: true, Position: 11},
}

// columnIndex maps a Column to its cell position within a row.
type columnIndex map[Column]int

// positionalIndex is the fixed layout used when headers are ignored.
func positionalIndex() columnIndex {
	idx := make(columnIndex, len(Columns))
	for _, col := range Columns {
		idx[col.Column] = col.Position
	}
	return idx
}

// headerKey normalizes a header cell for case-insensitive matching.
func headerKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(normalize.CleanCell(s)), " "))
}

// indexHeader resolves every known column against a header row.
// Returns a *FormatError listing required columns that are absent.
func indexHeader(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, dup := positions[key]; !dup && key != "" {
			positions[key] = i
		}
	}

	idx := make(columnIndex, len(Columns))
	var missing []string
	for _, col := range Columns {
		pos, ok := positions[headerKey(string(col.Column))]
		for _, alias := range col.Aliases {
			if ok {
				break
			}
			pos, ok = positions[headerKey(alias)]
		}
		if ok {
			idx[col.Column] = pos
			continue
		}
		if col.Required {
			missing = append(missing, string(col.Column))
		}
	}

	if len(missing) > 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return idx, nil
}
