// Package normalize turns raw spreadsheet cells into canonical domain values.
//
// Every function here is pure and total. Functions that have a sensible
// fallback (customer type, state, address, name, cycle) return it instead of
// an error. Functions whose failure must reject the row (location id, usage,
// calendar date) return an error wrapping one of the sentinel errors below.
package normalize
