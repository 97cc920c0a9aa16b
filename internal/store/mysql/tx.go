package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonMunkholm/meterload/internal/core"
)

// tx is one batch transaction. A failed InnoDB statement leaves the
// transaction usable, so only multi-statement writes need a savepoint.
type tx struct {
	tx *sql.Tx
	sp int
}

func connErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrConnection, err)
}

func (t *tx) queryID(ctx context.Context, query, arg string) (string, error) {
	var id string
	if err := t.tx.QueryRowContext(ctx, query, arg).Scan(&id); err != nil {
		return "", classify(err)
	}
	return id, nil
}

func (t *tx) FindCustomerByLocation(ctx context.Context, locationID string) (string, error) {
	return t.queryID(ctx, findCustomerByLocationSQL, locationID)
}

func (t *tx) FindCustomerByAccount(ctx context.Context, accountNumber string) (string, error) {
	return t.queryID(ctx, findCustomerByAccountSQL, accountNumber)
}

func (t *tx) FindMeterByLocation(ctx context.Context, locationID string) (string, error) {
	return t.queryID(ctx, findMeterByLocationSQL, locationID)
}

func (t *tx) InsertCustomer(ctx context.Context, c core.Customer) error {
	_, err := t.tx.ExecContext(ctx, insertCustomerSQL,
		c.ID, c.AccountNumber, c.FirstName, c.LastName, c.BusinessName,
		c.Email, c.Phone,
		c.ServiceAddress.Street, c.ServiceAddress.City, c.ServiceAddress.State, c.ServiceAddress.Zip,
		c.MailingAddress.Street, c.MailingAddress.City, c.MailingAddress.State, c.MailingAddress.Zip,
		string(c.Type), c.CycleNumber, c.Active)
	return classify(err)
}

func (t *tx) InsertMeter(ctx context.Context, m core.Meter) error {
	_, err := t.tx.ExecContext(ctx, insertMeterSQL,
		m.ID, m.CustomerID, m.ExternalLocationID, m.MeterNumber,
		m.ServiceAddress.Street, m.ServiceAddress.City, m.ServiceAddress.State, m.ServiceAddress.Zip,
		m.FacilityName, m.MeterType, m.Status)
	return classify(err)
}

// UpsertReadings writes readings in chunks of multi-row inserts. A savepoint
// spans the chunks so a rejected chunk undoes the earlier ones.
func (t *tx) UpsertReadings(ctx context.Context, readings []core.UsageReading, policy core.ConflictPolicy) error {
	if len(readings) == 0 {
		return nil
	}
	if len(readings) <= readingChunk {
		_, err := t.tx.ExecContext(ctx, upsertReadingsSQL(len(readings), policy), readingArgs(readings)...)
		return classify(err)
	}

	t.sp++
	name := fmt.Sprintf("sp_%d", t.sp)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", connErr(err))
	}
	for start := 0; start < len(readings); start += readingChunk {
		chunk := readings[start:min(start+readingChunk, len(readings))]
		if _, err := t.tx.ExecContext(ctx, upsertReadingsSQL(len(chunk), policy), readingArgs(chunk)...); err != nil {
			if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
				return fmt.Errorf("rollback to savepoint after %v: %w", err, connErr(rbErr))
			}
			return classify(err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", connErr(err))
	}
	return nil
}

func (t *tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return connErr(err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return connErr(err)
	}
	return nil
}
