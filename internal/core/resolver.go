package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Resolver maps external location ids to customer and meter ids for one
// run. Its caches only ever hold ids just read from or written to the store.
type Resolver struct {
	accountPrefix string
	customers     map[string]string
	meters        map[string]string
	newID         func() string
}

// NewResolver creates a Resolver with empty caches.
func NewResolver(accountPrefix string) *Resolver {
	return &Resolver{
		accountPrefix: accountPrefix,
		customers:     make(map[string]string),
		meters:        make(map[string]string),
		newID:         uuid.NewString,
	}
}

// AccountNumber derives the account number for a location.
func (r *Resolver) AccountNumber(locationID string) string {
	return r.accountPrefix + locationID
}

// Resolved reports whether both entities for a location are cached.
func (r *Resolver) Resolved(locationID string) bool {
	_, c := r.customers[locationID]
	_, m := r.meters[locationID]
	return c && m
}

// ResolveCustomer returns the customer for rec's location, creating it on
// first sight. created is true only when this call inserted the customer.
func (r *Resolver) ResolveCustomer(ctx context.Context, tx Tx, rec Record) (id string, created bool, err error) {
	if id, ok := r.customers[rec.LocationID]; ok {
		return id, false, nil
	}

	id, err = tx.FindCustomerByLocation(ctx, rec.LocationID)
	if err == nil {
		r.customers[rec.LocationID] = id
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, r.lookupErr(rec, "customer", err)
	}

	// A customer can exist without a meter when a previous meter insert failed
	account := r.AccountNumber(rec.LocationID)
	id, err = tx.FindCustomerByAccount(ctx, account)
	if err == nil {
		r.customers[rec.LocationID] = id
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, r.lookupErr(rec, "customer", err)
	}

	c := r.newCustomer(rec, account)
	if err := tx.InsertCustomer(ctx, c); err != nil {
		return "", false, r.createErr(rec, "customer", err)
	}
	r.customers[rec.LocationID] = c.ID
	return c.ID, true, nil
}

// ResolveMeter returns the meter for rec's location, creating it under
// customerID on first sight.
func (r *Resolver) ResolveMeter(ctx context.Context, tx Tx, rec Record, customerID string) (id string, created bool, err error) {
	if id, ok := r.meters[rec.LocationID]; ok {
		return id, false, nil
	}

	id, err = tx.FindMeterByLocation(ctx, rec.LocationID)
	if err == nil {
		r.meters[rec.LocationID] = id
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, r.lookupErr(rec, "meter", err)
	}

	m := Meter{
		ID:                 r.newID(),
		CustomerID:         customerID,
		ExternalLocationID: rec.LocationID,
		MeterNumber:        "M-" + rec.LocationID,
		ServiceAddress:     rec.Address,
		FacilityName:       rec.FacilityName,
		MeterType:          MeterTypeStandard,
		Status:             MeterStatusActive,
	}
	if err := tx.InsertMeter(ctx, m); err != nil {
		return "", false, r.createErr(rec, "meter", err)
	}
	r.meters[rec.LocationID] = m.ID
	return m.ID, true, nil
}

func (r *Resolver) newCustomer(rec Record, account string) Customer {
	return Customer{
		ID:                 r.newID(),
		AccountNumber:      account,
		ExternalLocationID: rec.LocationID,
		FirstName:          rec.FirstName,
		LastName:           rec.LastName,
		BusinessName:       rec.BusinessName,
		Email:              fmt.Sprintf("customer.%s@%s", rec.LocationID, EmailDomain),
		Phone:              rec.Phone,
		ServiceAddress:     rec.Address,
		MailingAddress:     rec.Address,
		Type:               rec.CustomerType,
		CycleNumber:        rec.Cycle,
		Active:             true,
	}
}

// lookupErr keeps connection failures fatal and fails the row otherwise.
func (r *Resolver) lookupErr(rec Record, entity string, err error) error {
	err = fmt.Errorf("find %s for location %s: %w", entity, rec.LocationID, err)
	if isFatal(err) {
		return err
	}
	return &RowError{Kind: KindEntityCreate, Line: rec.Line, Err: err}
}

func (r *Resolver) createErr(rec Record, entity string, err error) error {
	err = fmt.Errorf("create %s for location %s: %w", entity, rec.LocationID, err)
	if isFatal(err) {
		return err
	}
	return &RowError{Kind: KindEntityCreate, Line: rec.Line, Err: err}
}
