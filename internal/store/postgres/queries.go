package postgres

const (
	createRunSQL = `
INSERT INTO import_runs (id, source_type, source_file_name, file_checksum, imported_by, status, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	checkpointRunSQL = `
UPDATE import_runs
SET rows_processed = $2, rows_imported = $3, rows_failed = $4,
    customers_created = $5, meters_created = $6, readings_written = $7
WHERE id = $1`

	finalizeRunSQL = `
UPDATE import_runs
SET status = $2,
    rows_processed = $3, rows_imported = $4, rows_failed = $5,
    customers_created = $6, meters_created = $7, readings_written = $8,
    error_message = NULLIF($9, ''),
    completed_at = $10
WHERE id = $1`

	findCompletedRunSQL = `
SELECT id, source_type, source_file_name, file_checksum, imported_by, status,
       rows_processed, rows_imported, rows_failed,
       customers_created, meters_created, readings_written,
       COALESCE(error_message, ''), started_at, completed_at
FROM import_runs
WHERE file_checksum = $1 AND status = 'COMPLETED'
ORDER BY completed_at DESC
LIMIT 1`

	findCustomerByLocationSQL = `
SELECT c.id FROM customers c
JOIN meters m ON m.customer_id = c.id
WHERE m.external_location_id = $1
LIMIT 1`

	findCustomerByAccountSQL = `SELECT id FROM customers WHERE account_number = $1 LIMIT 1`

	insertCustomerSQL = `
INSERT INTO customers (
    id, account_number, first_name, last_name, business_name,
    email, phone, service_address, city, state, zip_code,
    mailing_address_line1, mailing_city, mailing_state, mailing_zip,
    customer_type, billing_cycle_number, is_active
) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	findMeterByLocationSQL = `SELECT id FROM meters WHERE external_location_id = $1 LIMIT 1`

	insertMeterSQL = `
INSERT INTO meters (
    id, customer_id, external_location_id, meter_number,
    service_address_line1, service_city, service_state, service_zip,
    facility_name, meter_type, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`

	insertReadingSQL = `
INSERT INTO daily_water_readings (
    id, customer_id, meter_id, external_location_id,
    reading_year, reading_month, reading_day, reading_date,
    daily_usage_ccf, source, import_run_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	upsertReadingSQL = insertReadingSQL + `
ON CONFLICT (meter_id, reading_date) DO UPDATE
SET daily_usage_ccf = EXCLUDED.daily_usage_ccf,
    source = EXCLUDED.source,
    import_run_id = EXCLUDED.import_run_id`

	insertReadingIgnoreSQL = insertReadingSQL + `
ON CONFLICT (meter_id, reading_date) DO NOTHING`
)
