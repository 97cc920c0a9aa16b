package core

import (
	"context"
	"fmt"
	"time"
)

// fakeTx records calls and returns scripted errors.
type fakeTx struct {
	customersByLoc  map[string]string
	customersByAcct map[string]string
	meters          map[string]string
	readings        map[string]UsageReading

	findErr    error
	insertErr  error
	upsertErr  func([]UsageReading) error
	inserts    int
	upsertCall int
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		customersByLoc:  make(map[string]string),
		customersByAcct: make(map[string]string),
		meters:          make(map[string]string),
		readings:        make(map[string]UsageReading),
	}
}

func (f *fakeTx) FindCustomerByLocation(_ context.Context, loc string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	if id, ok := f.customersByLoc[loc]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (f *fakeTx) FindCustomerByAccount(_ context.Context, acct string) (string, error) {
	if id, ok := f.customersByAcct[acct]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (f *fakeTx) InsertCustomer(_ context.Context, c Customer) error {
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.customersByAcct[c.AccountNumber] = c.ID
	return nil
}

func (f *fakeTx) FindMeterByLocation(_ context.Context, loc string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	if id, ok := f.meters[loc]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (f *fakeTx) InsertMeter(_ context.Context, m Meter) error {
	f.inserts++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.meters[m.ExternalLocationID] = m.ID
	f.customersByLoc[m.ExternalLocationID] = m.CustomerID
	return nil
}

func (f *fakeTx) UpsertReadings(_ context.Context, rs []UsageReading, _ ConflictPolicy) error {
	f.upsertCall++
	if f.upsertErr != nil {
		if err := f.upsertErr(rs); err != nil {
			return err
		}
	}
	for _, r := range rs {
		f.readings[fmt.Sprintf("%s/%s", r.MeterID, r.Date.Format(time.DateOnly))] = r
	}
	return nil
}

func (f *fakeTx) Commit(context.Context) error   { return nil }
func (f *fakeTx) Rollback(context.Context) error { return nil }

// fakeLedgerStore keeps the last values written.
type fakeLedgerStore struct {
	created   ImportRun
	status    RunStatus
	counters  Counters
	errMsg    string
	completed time.Time
	err       error
}

func (f *fakeLedgerStore) CreateImportRun(_ context.Context, run ImportRun) error {
	f.created = run
	return f.err
}

func (f *fakeLedgerStore) CheckpointImportRun(_ context.Context, _ string, c Counters) error {
	f.counters = c
	return f.err
}

func (f *fakeLedgerStore) FinalizeImportRun(_ context.Context, _ string, s RunStatus, c Counters, msg string, at time.Time) error {
	f.status, f.counters, f.errMsg, f.completed = s, c, msg, at
	return f.err
}

func (f *fakeLedgerStore) FindCompletedRunByChecksum(context.Context, string) (ImportRun, error) {
	return ImportRun{}, ErrNotFound
}
