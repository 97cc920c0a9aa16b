package core

import (
	"fmt"

	"github.com/JonMunkholm/meterload/internal/normalize"
	"github.com/JonMunkholm/meterload/internal/source"
)

// Record is a source row with every identity field normalized. Calendar and
// usage validation happen in the Writer.
type Record struct {
	Line         int
	LocationID   string
	FirstName    string
	LastName     string
	BusinessName string
	Phone        string
	FacilityName string
	Address      normalize.Address
	CustomerType normalize.CustomerType
	Cycle        int
	Year         int
	Month        int
	Day          int
	RawUsage     string
}

// parseRecord normalizes a row. A missing or non-numeric location id, year,
// month or day fails the row.
func parseRecord(row source.Row, defaultCycle int) (Record, error) {
	fail := func(err error) (Record, error) {
		return Record{}, &RowError{Kind: KindRowParse, Line: row.Line(), Err: err}
	}

	loc, err := normalize.LocationID(row.Get(source.LocationID))
	if err != nil {
		return fail(err)
	}

	var ymd [3]int
	for i, col := range []source.Column{source.Year, source.Month, source.Day} {
		v, err := normalize.Int(row.Get(col))
		if err != nil {
			return fail(fmt.Errorf("%s: %w", col, err))
		}
		ymd[i] = v
	}

	first, last := normalize.ParseName(row.Get(source.CustomerName))

	return Record{
		Line:         row.Line(),
		LocationID:   loc,
		FirstName:    first,
		LastName:     last,
		BusinessName: normalize.Optional(row.Get(source.BusinessName)),
		Phone:        normalize.Optional(row.Get(source.Phone)),
		FacilityName: normalize.Optional(row.Get(source.FacilityName)),
		Address:      normalize.ParseAddress(row.Get(source.MailingAddress)),
		CustomerType: normalize.NormalizeCustomerType(row.Get(source.CustomerType)),
		Cycle:        normalize.IntOr(row.Get(source.CycleNumber), defaultCycle),
		Year:         ymd[0],
		Month:        ymd[1],
		Day:          ymd[2],
		RawUsage:     row.Get(source.Usage),
	}, nil
}
