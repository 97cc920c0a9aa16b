package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/JonMunkholm/meterload/internal/core"
)

// Server error numbers after which the batch transaction cannot be trusted:
// too many connections, out of memory, shutdown in progress, server gone
// away and lost connection. Deadlock and lock wait timeout are here too
// because InnoDB rolls back the transaction, discarding entities the
// resolver has already cached.
var connectionErrors = map[uint16]bool{
	1040: true,
	1037: true,
	1053: true,
	2006: true,
	2013: true,
	1205: true,
	1213: true,
}

// classify maps a driver error onto the core error model. Statement errors
// reported by the server stay row-level; everything else is a connection
// failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && !connectionErrors[myErr.Number] {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrConnection, err)
}
