package normalize

import "strings"

// CustomerType is the closed set of customer classifications.
type CustomerType string

const (
	Residential CustomerType = "RESIDENTIAL"
	Commercial  CustomerType = "COMMERCIAL"
	Industrial  CustomerType = "INDUSTRIAL"
)

// customerTypeSynonyms maps source values onto the closed set.
var customerTypeSynonyms = map[string]CustomerType{
	"RESIDENTIAL": Residential,
	"COMMERCIAL":  Commercial,
	"INDUSTRIAL":  Industrial,
	"MUNICIPAL":   Commercial,
}

// NormalizeCustomerType maps a raw value to a CustomerType.
// Blank, null-like ("0", "N/A", "NONE") and unrecognized values are RESIDENTIAL.
func NormalizeCustomerType(raw string) CustomerType {
	if t, ok := customerTypeSynonyms[strings.ToUpper(CleanCell(raw))]; ok {
		return t
	}
	return Residential
}

// Default name parts used when the source name is missing.
const (
	DefaultFirstName = "Unknown"
	DefaultLastName  = "Customer"
)

// ParseName splits a full name on whitespace. The first token is the first
// name and the remaining tokens form the last name.
func ParseName(raw string) (first, last string) {
	parts := strings.Fields(CleanCell(raw))
	if IsBlank(raw) || len(parts) == 0 {
		return DefaultFirstName, DefaultLastName
	}
	first = parts[0]
	if len(parts) == 1 {
		return first, DefaultLastName
	}
	return first, strings.Join(parts[1:], " ")
}

// Optional returns the cleaned cell, or "" for null markers.
func Optional(raw string) string {
	if IsBlank(raw) {
		return ""
	}
	return CleanCell(raw)
}
