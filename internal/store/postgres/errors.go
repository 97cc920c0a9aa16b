package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/meterload/internal/core"
)

// connectionClasses are SQLSTATE classes after which the session cannot be
// trusted: connection exceptions, invalid transaction state (25P02 once the
// transaction is aborted), insufficient resources, operator intervention and
// system errors.
var connectionClasses = map[string]bool{
	"08": true,
	"25": true,
	"53": true,
	"57": true,
	"58": true,
}

// classify maps a pgx error onto the core error model. Server-reported
// statement errors stay row-level; everything else is a connection failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && connectionClasses[pgErr.Code[:2]] {
			return fmt.Errorf("%w: %w", core.ErrConnection, err)
		}
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrConnection, err)
}
