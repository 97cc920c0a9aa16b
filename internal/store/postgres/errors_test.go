package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/meterload/internal/config"
	"github.com/JonMunkholm/meterload/internal/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		conn     bool
	}{
		{"nil", nil, false, false},
		{"no rows", pgx.ErrNoRows, true, false},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), true, false},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}, false, false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false, false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, false, false},
		{"connection failure", &pgconn.PgError{Code: "08006"}, false, true},
		{"transaction aborted", &pgconn.PgError{Code: "25P02", Message: "current transaction is aborted"}, false, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, false, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, false, true},
		{"io error", io.ErrUnexpectedEOF, false, true},
		{"canceled", context.Canceled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.err == nil {
				require.NoError(t, got)
				return
			}
			require.Equal(t, tt.notFound, errors.Is(got, core.ErrNotFound))
			require.Equal(t, tt.conn, errors.Is(got, core.ErrConnection))
			if !tt.notFound {
				require.ErrorIs(t, got, tt.err)
			}
		})
	}
}

func TestConnErrKeepsContextErrors(t *testing.T) {
	err := connErr(context.DeadlineExceeded)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, core.ErrConnection)

	require.ErrorIs(t, connErr(errors.New("conn closed")), core.ErrConnection)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{URL: "host=localhost port=notaport"})
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrConnection)
}

func TestOpen_Unreachable(t *testing.T) {
	cfg := config.DatabaseConfig{
		URL:            "postgres://importer@127.0.0.1:1/usage?sslmode=disable",
		MaxConns:       1,
		ConnectTimeout: 2 * time.Second,
	}
	_, err := Opener(cfg)(context.Background())
	require.ErrorIs(t, err, core.ErrConnection)
}
