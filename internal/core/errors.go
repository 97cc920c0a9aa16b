package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies import failures.
type ErrorKind int

const (
	KindInput ErrorKind = iota + 1
	KindRowParse
	KindEntityCreate
	KindWrite
	KindFailRate
	KindStoreConnection
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "InputError"
	case KindRowParse:
		return "RowParseError"
	case KindEntityCreate:
		return "EntityCreateError"
	case KindWrite:
		return "WriteError"
	case KindFailRate:
		return "FailRateExceeded"
	case KindStoreConnection:
		return "StoreConnectionError"
	case KindCanceled:
		return "Canceled"
	default:
		return "UnknownError"
	}
}

// RowError is a recoverable failure confined to one row.
type RowError struct {
	Kind ErrorKind
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Kind, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ImportError is a failure that ends the run.
type ImportError struct {
	Kind ErrorKind
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// FailRateError reports a run whose failed rows exceeded the allowed rate.
type FailRateError struct {
	Failed    int
	Processed int
	Rate      float64
	Max       float64
}

func (e *FailRateError) Error() string {
	return fmt.Sprintf("fail rate %.2f%% exceeds maximum %.2f%% (%d of %d rows failed)",
		e.Rate*100, e.Max*100, e.Failed, e.Processed)
}

// KindOf returns the kind carried by err, or 0 when it has none.
func KindOf(err error) ErrorKind {
	var re *RowError
	if errors.As(err, &re) {
		return re.Kind
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	var fe *FailRateError
	if errors.As(err, &fe) {
		return KindFailRate
	}
	if errors.Is(err, ErrConnection) {
		return KindStoreConnection
	}
	return 0
}

// isFatal reports whether a store error must end the run rather than fail
// one row.
func isFatal(err error) bool {
	return errors.Is(err, ErrConnection) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// asRowError returns err as a recoverable row failure, or nil when err must
// end the run.
func asRowError(err error) *RowError {
	var re *RowError
	if errors.As(err, &re) && !isFatal(err) {
		return re
	}
	return nil
}

// fatal wraps err as an ImportError unless it already is one.
func fatal(kind ErrorKind, err error) error {
	var ie *ImportError
	if errors.As(err, &ie) {
		return err
	}
	switch {
	case errors.Is(err, ErrConnection):
		kind = KindStoreConnection
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCanceled
	}
	return &ImportError{Kind: kind, Err: err}
}
