package core

// # Error Codes Reference
//
// Codes give operators something short to quote when asking for help.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this key already exists
//	DB002 - Unique constraint: A value that must be unique already exists
//	DB003 - Foreign key: Referenced customer or meter does not exist
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: Year, month or day is out of range
//	VAL002 - Invalid number: Usage or an id is not a valid number
//	VAL003 - Blank value: A required cell is empty
//	VAL004 - Missing column: Required column is missing from the file
//	VAL005 - Location id: Location id is missing or not a whole number
//	VAL006 - Negative usage: Usage must not be negative
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Not found: The input file does not exist
//	FILE002 - Unsupported format: Only .csv and .xlsx files can be imported
//	FILE003 - Empty file: The file has no header row
//	FILE004 - Unreadable: The file could not be read
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Fail rate: Too many rows failed and the run was aborted
//	RUN002 - Cancelled: The run was cancelled
//	RUN003 - Deadline: The run exceeded its time limit

import (
	"fmt"
	"strings"
)

// UserMessage represents a user-friendly error message with guidance.
type UserMessage struct {
	Message string // What went wrong
	Action  string // What the operator should do
	Code    string // Reference code for support
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	// Run errors
	{"fail rate", UserMessage{"Too many rows failed and the run was aborted", "Download the failed rows file and fix the source data", "RUN001"}},
	{"context canceled", UserMessage{"The run was cancelled", "Re-run the import; committed batches are kept", "RUN002"}},
	{"deadline exceeded", UserMessage{"The run exceeded its time limit", "Raise IMPORT_TIMEOUT or split the file", "RUN003"}},

	// Database constraint errors
	{"duplicate key", UserMessage{"A record with this key already exists", "Review the failed rows for duplicates", "DB001"}},
	{"duplicate entry", UserMessage{"A record with this key already exists", "Review the failed rows for duplicates", "DB001"}},
	{"unique constraint", UserMessage{"A value that must be unique already exists", "Check for duplicate account numbers or meter numbers", "DB002"}},
	{"foreign key", UserMessage{"Referenced customer or meter does not exist", "Re-run the import so entities are created first", "DB003"}},

	// Database connection errors
	{"connection refused", UserMessage{"Unable to connect to database", "Check DATABASE_URL and that the database is running", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Re-run the import", "DB005"}},
	{"broken pipe", UserMessage{"Database connection was interrupted", "Re-run the import", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try again later or lower IMPORT_BATCH_SIZE", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Re-run the import", "DB007"}},

	// Validation errors
	{"invalid date", UserMessage{"Year, month or day is out of range", "Check the Year, Month and Day columns", "VAL001"}},
	{"is negative", UserMessage{"Usage must not be negative", "Correct the usage value", "VAL006"}},
	{"location id", UserMessage{"Location id is missing or not a whole number", "Check the Location ID column", "VAL005"}},
	{"invalid number", UserMessage{"Usage or an id is not a valid number", "Use plain decimal numbers without units", "VAL002"}},
	{"not numeric", UserMessage{"Usage or an id is not a valid number", "Use plain decimal numbers without units", "VAL002"}},
	{"value is blank", UserMessage{"A required cell is empty", "Fill in the Year, Month, Day and Usage columns", "VAL003"}},
	{"missing required column", UserMessage{"Required column is missing from the file", "Check the header row against the expected columns", "VAL004"}},

	// File errors
	{"no such file", UserMessage{"The input file does not exist", "Check the file path", "FILE001"}},
	{"unsupported extension", UserMessage{"Only .csv and .xlsx files can be imported", "Export the data as CSV or XLSX", "FILE002"}},
	{"is empty", UserMessage{"The file has no header row", "Check that the right file or sheet was selected", "FILE003"}},
	{"cannot read", UserMessage{"The file could not be read", "Check file permissions", "FILE004"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the underlying error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
