package core

// FailRateBreaker ends a run whose rows fail too often.
//
// The rate is only enforced once MinRows rows have been processed so a few
// early failures cannot abort a large file.
type FailRateBreaker struct {
	MaxFailRate float64
	MinRows     int
}

// Check returns a *FailRateError when c trips the breaker.
func (b FailRateBreaker) Check(c Counters) error {
	if c.RowsProcessed == 0 || c.RowsProcessed < b.MinRows {
		return nil
	}
	rate := c.FailRate()
	if rate <= b.MaxFailRate {
		return nil
	}
	return &FailRateError{
		Failed:    c.RowsFailed,
		Processed: c.RowsProcessed,
		Rate:      rate,
		Max:       b.MaxFailRate,
	}
}
