package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/meterload/internal/core"
)

// tx is one batch transaction. Every statement runs inside its own savepoint
// because PostgreSQL aborts the whole transaction on any failed statement.
type tx struct {
	tx pgx.Tx
	sp int
}

// savepoint runs fn between SAVEPOINT and RELEASE, rolling back to the
// savepoint when fn fails so the transaction stays usable.
func (t *tx) savepoint(ctx context.Context, fn func() error) error {
	t.sp++
	name := fmt.Sprintf("sp_%d", t.sp)

	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", connErr(err))
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint after %v: %w", err, connErr(rbErr))
		}
		return classify(err)
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", connErr(err))
	}
	return nil
}

// connErr marks an error that leaves the transaction unusable.
func connErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrConnection, err)
}

// queryID looks up a single id. A miss is not a failed statement, so it
// releases the savepoint and reports core.ErrNotFound.
func (t *tx) queryID(ctx context.Context, sql, arg string) (string, error) {
	var id string
	found := false
	err := t.savepoint(ctx, func() error {
		err := t.tx.QueryRow(ctx, sql, arg).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", core.ErrNotFound
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
	return t.savepoint(ctx, func() error {
		_, err := t.tx.Exec(ctx, insertCustomerSQL,
			c.ID, c.AccountNumber, c.FirstName, c.LastName, c.BusinessName,
			c.Email, c.Phone,
			c.ServiceAddress.Street, c.ServiceAddress.City, c.ServiceAddress.State, c.ServiceAddress.Zip,
			c.MailingAddress.Street, c.MailingAddress.City, c.MailingAddress.State, c.MailingAddress.Zip,
			string(c.Type), c.CycleNumber, c.Active)
		return err
	})
}

func (t *tx) InsertMeter(ctx context.Context, m core.Meter) error {
	return t.savepoint(ctx, func() error {
		_, err := t.tx.Exec(ctx, insertMeterSQL,
			m.ID, m.CustomerID, m.ExternalLocationID, m.MeterNumber,
			m.ServiceAddress.Street, m.ServiceAddress.City, m.ServiceAddress.State, m.ServiceAddress.Zip,
			m.FacilityName, m.MeterType, m.Status)
		return err
	})
}

// UpsertReadings sends all readings in one round trip. Either every reading
// is written or none is.
func (t *tx) UpsertReadings(ctx context.Context, readings []core.UsageReading, policy core.ConflictPolicy) error {
	if len(readings) == 0 {
		return nil
	}
	query := upsertReadingSQL
	if policy == core.ConflictIgnore {
		query = insertReadingIgnoreSQL
	}

	return t.savepoint(ctx, func() error {
		batch := &pgx.Batch{}
		for _, r := range readings {
			batch.Queue(query,
				r.ID, r.CustomerID, r.MeterID, r.ExternalLocationID,
				r.Year, r.Month, r.Day, r.Date,
				r.UsageCCF, r.Source, r.ImportRunID)
		}
		return t.tx.SendBatch(ctx, batch).Close()
	})
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return connErr(err)
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return connErr(err)
	}
	return nil
}
