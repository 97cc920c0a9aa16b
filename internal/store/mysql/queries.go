package mysql

import (
	"strings"

	"github.com/JonMunkholm/meterload/internal/core"
)

// readingChunk caps rows per INSERT to stay well below the placeholder limit.
const readingChunk = 1000

const (
	createRunSQL = `
INSERT INTO import_runs (id, source_type, source_file_name, file_checksum, imported_by, status, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	checkpointRunSQL = `
UPDATE import_runs
SET rows_processed = ?, rows_imported = ?, rows_failed = ?,
    customers_created = ?, meters_created = ?, readings_written = ?
WHERE id = ?`

	finalizeRunSQL = `
UPDATE import_runs
SET status = ?,
    rows_processed = ?, rows_imported = ?, rows_failed = ?,
    customers_created = ?, meters_created = ?, readings_written = ?,
    error_message = NULLIF(?, ''),
    completed_at = ?
WHERE id = ?`

	findCompletedRunSQL = `
SELECT id, source_type, source_file_name, file_checksum, imported_by, status,
       rows_processed, rows_imported, rows_failed,
       customers_created, meters_created, readings_written,
       COALESCE(error_message, ''), started_at, completed_at
FROM import_runs
WHERE file_checksum = ? AND status = 'COMPLETED'
ORDER BY completed_at DESC
LIMIT 1`

	findCustomerByLocationSQL = `
SELECT c.id FROM customers c
JOIN meters m ON m.customer_id = c.id
WHERE m.external_location_id = ?
LIMIT 1`

	findCustomerByAccountSQL = `SELECT id FROM customers WHERE account_number = ? LIMIT 1`

	insertCustomerSQL = `
INSERT INTO customers (
    id, account_number, first_name, last_name, business_name,
    email, phone, service_address, city, state, zip_code,
    mailing_address_line1, mailing_city, mailing_state, mailing_zip,
    customer_type, billing_cycle_number, is_active
) VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	findMeterByLocationSQL = `SELECT id FROM meters WHERE external_location_id = ? LIMIT 1`

	insertMeterSQL = `
INSERT INTO meters (
    id, customer_id, external_location_id, meter_number,
    service_address_line1, service_city, service_state, service_zip,
    facility_name, meter_type, status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`

	readingColumns = `
INSERT INTO daily_water_readings (
    id, customer_id, meter_id, external_location_id,
    reading_year, reading_month, reading_day, reading_date,
    daily_usage_ccf, source, import_run_id
) VALUES `

	readingPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	onDuplicateUpdate = `
ON DUPLICATE KEY UPDATE
    daily_usage_ccf = VALUES(daily_usage_ccf),
    source = VALUES(source),
    import_run_id = VALUES(import_run_id)`

	// A no-op update keeps existing rows without INSERT IGNORE, which would
	// also downgrade foreign key errors to warnings.
	onDuplicateKeep = `
ON DUPLICATE KEY UPDATE id = id`
)

// upsertReadingsSQL builds a multi-row upsert for n readings.
func upsertReadingsSQL(n int, policy core.ConflictPolicy) string {
	var b strings.Builder
	b.WriteString(readingColumns)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(readingPlaceholders)
	}
	if policy == core.ConflictIgnore {
		b.WriteString(onDuplicateKeep)
	} else {
		b.WriteString(onDuplicateUpdate)
	}
	return b.String()
}

func readingArgs(readings []core.UsageReading) []any {
	args := make([]any, 0, len(readings)*11)
	for _, r := range readings {
		args = append(args,
			r.ID, r.CustomerID, r.MeterID, r.ExternalLocationID,
			r.Year, r.Month, r.Day, r.Date,
			r.UsageCCF, r.Source, r.ImportRunID)
	}
	return args
}
