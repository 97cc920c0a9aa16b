package normalize

import (
	"strings"
	"unicode"
)

// DefaultState is used whenever a state cannot be determined.
const DefaultState = "TX"

// Address is a parsed free-text mailing address.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// usStates maps US state names, uppercased with letters only, to their codes.
var usStates = map[string]string{
	"ALABAMA":            "AL",
	"ALASKA":             "AK",
	"ARIZONA":            "AZ",
	"ARKANSAS":           "AR",
	"CALIFORNIA":         "CA",
	"COLORADO":           "CO",
	"CONNECTICUT":        "CT",
	"DELAWARE":           "DE",
	"DISTRICTOFCOLUMBIA": "DC",
	"FLORIDA":            "FL",
	"GEORGIA":            "GA",
	"HAWAII":             "HI",
	"IDAHO":              "ID",
	"ILLINOIS":           "IL",
	"INDIANA":            "IN",
	"IOWA":               "IA",
	"KANSAS":             "KS",
	"KENTUCKY":           "KY",
	"LOUISIANA":          "LA",
	"MAINE":              "ME",
	"MARYLAND":           "MD",
	"MASSACHUSETTS":      "MA",
	"MICHIGAN":           "MI",
	"MINNESOTA":          "MN",
	"MISSISSIPPI":        "MS",
	"MISSOURI":           "MO",
	"MONTANA":            "MT",
	"NEBRASKA":           "NE",
	"NEVADA":             "NV",
	"NEWHAMPSHIRE":       "NH",
	"NEWJERSEY":          "NJ",
	"NEWMEXICO":          "NM",
	"NEWYORK":            "NY",
	"NORTHCAROLINA":      "NC",
	"NORTHDAKOTA":        "ND",
	"OHIO":               "OH",
	"OKLAHOMA":           "OK",
	"OREGON":             "OR",
	"PENNSYLVANIA":       "PA",
	"RHODEISLAND":        "RI",
	"SOUTHCAROLINA":      "SC",
	"SOUTHDAKOTA":        "SD",
	"TENNESSEE":          "TN",
	"TEXAS":              "TX",
	"UTAH":               "UT",
	"VERMONT":            "VT",
	"VIRGINIA":           "VA",
	"WASHINGTON":         "WA",
	"WESTVIRGINIA":       "WV",
	"WISCONSIN":          "WI",
	"WYOMING":            "WY",
}

// NormalizeState converts a raw state value to a two-letter code.
// Non-letters are stripped; two remaining letters are used as-is, a known
// state name is mapped, anything else becomes DefaultState.
func NormalizeState(raw string) string {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, raw)

	if len(letters) == 2 {
		return letters
	}
	if code, ok := usStates[letters]; ok {
		return code
	}
	return DefaultState
}

// ParseAddress splits "street, city, ST zip" into its parts.
//
//	""                              -> {"", "", "TX", ""}
//	"1 Elm"                         -> {"1 Elm", "", "TX", ""}
//	"456 Oak Ave, Austin"           -> {"456 Oak Ave", "Austin", "TX", ""}
//	"123 Main St, Dallas, TX 75201" -> {"123 Main St", "Dallas", "TX", "75201"}
//
// Segments after the third are ignored.
func ParseAddress(raw string) Address {
	if IsBlank(raw) {
		return Address{State: DefaultState}
	}

	parts := strings.Split(CleanCell(raw), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch {
	case len(parts) >= 3:
		addr := Address{Street: parts[0], City: parts[1], State: DefaultState}
		stateZip := strings.Fields(parts[2])
		if len(stateZip) > 0 {
			addr.State = NormalizeState(stateZip[0])
		}
		if len(stateZip) > 1 {
			addr.Zip = stateZip[1]
		}
		return addr
	case len(parts) == 2:
		return Address{Street: parts[0], City: parts[1], State: DefaultState}
	default:
		return Address{Street: parts[0], State: DefaultState}
	}
}
