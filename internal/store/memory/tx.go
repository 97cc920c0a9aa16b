package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/meterload/internal/core"
)

var errTxDone = errors.New("transaction already committed or rolled back")

type tx struct {
	s      *Store
	staged tables
	done   bool
}

func (t *tx) check() error {
	if t.done {
		return errTxDone
	}
	return nil
}

func (t *tx) meterIDAt(locationID string) (string, bool) {
	if id, ok := t.staged.meterByLocation[locationID]; ok {
		return id, true
	}
	id, ok := t.s.data.meterByLocation[locationID]
	return id, ok
}

func (t *tx) meter(id string) (core.Meter, bool) {
	if m, ok := t.staged.meters[id]; ok {
		return m, true
	}
	m, ok := t.s.data.meters[id]
	return m, ok
}

func (t *tx) customerExists(id string) bool {
	if _, ok := t.staged.customers[id]; ok {
		return true
	}
	_, ok := t.s.data.customers[id]
	return ok
}

func (t *tx) FindCustomerByLocation(_ context.Context, locationID string) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return "", err
	}
	id, ok := t.meterIDAt(locationID)
	if !ok {
		return "", core.ErrNotFound
	}
	m, _ := t.meter(id)
	return m.CustomerID, nil
}

func (t *tx) FindCustomerByAccount(_ context.Context, accountNumber string) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return "", err
	}
	if id, ok := t.staged.customerByAcct[accountNumber]; ok {
		return id, nil
	}
	if id, ok := t.s.data.customerByAcct[accountNumber]; ok {
		return id, nil
	}
	return "", core.ErrNotFound
}

func (t *tx) InsertCustomer(_ context.Context, c core.Customer) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return err
	}
	if h := t.s.Hooks.InsertCustomer; h != nil {
		if err := h(c); err != nil {
			return err
		}
	}
	_, staged := t.staged.customerByAcct[c.AccountNumber]
	_, committed := t.s.data.customerByAcct[c.AccountNumber]
	if staged || committed || t.customerExists(c.ID) {
		return fmt.Errorf("duplicate key value violates unique constraint \"customers_account_number_key\" (%s)", c.AccountNumber)
	}
	t.staged.customers[c.ID] = c
	t.staged.customerByAcct[c.AccountNumber] = c.ID
	return nil
}

func (t *tx) FindMeterByLocation(_ context.Context, locationID string) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return "", err
	}
	if id, ok := t.meterIDAt(locationID); ok {
		return id, nil
	}
	return "", core.ErrNotFound
}

func (t *tx) InsertMeter(_ context.Context, m core.Meter) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return err
	}
	if h := t.s.Hooks.InsertMeter; h != nil {
		if err := h(m); err != nil {
			return err
		}
	}
	if _, ok := t.meterIDAt(m.ExternalLocationID); ok {
		return fmt.Errorf("duplicate key value violates unique constraint \"meters_external_location_id_key\" (%s)", m.ExternalLocationID)
	}
	if !t.customerExists(m.CustomerID) {
		return fmt.Errorf("insert meter %s violates foreign key constraint \"meters_customer_id_fkey\"", m.MeterNumber)
	}
	t.staged.meters[m.ID] = m
	t.staged.meterByLocation[m.ExternalLocationID] = m.ID
	return nil
}

func (t *tx) UpsertReadings(_ context.Context, readings []core.UsageReading, policy core.ConflictPolicy) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return err
	}

	// Validate everything first so a rejected batch changes nothing
	for _, r := range readings {
		if h := t.s.Hooks.UpsertReading; h != nil {
			if err := h(r); err != nil {
				return err
			}
		}
		if _, ok := t.meter(r.MeterID); !ok {
			return fmt.Errorf("insert reading violates foreign key constraint \"daily_water_readings_meter_id_fkey\" (meter %s)", r.MeterID)
		}
	}

	for _, r := range readings {
		key := readingKey{meterID: r.MeterID, date: r.Date}
		existing, ok := t.staged.readings[key]
		if !ok {
			existing, ok = t.s.data.readings[key]
		}
		if ok {
			if policy == core.ConflictIgnore {
				continue
			}
			r.ID = existing.ID
		}
		t.staged.readings[key] = r
	}
	return nil
}

func (t *tx) Commit(context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	if h := t.s.Hooks.Commit; h != nil {
		if err := h(); err != nil {
			return err
		}
	}

	d := &t.s.data
	for id, c := range t.staged.customers {
		d.customers[id] = c
	}
	for k, v := range t.staged.customerByAcct {
		d.customerByAcct[k] = v
	}
	for id, m := range t.staged.meters {
		d.meters[id] = m
	}
	for k, v := range t.staged.meterByLocation {
		d.meterByLocation[k] = v
	}
	for k, r := range t.staged.readings {
		d.readings[k] = r
	}
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.done = true
	return nil
}
