package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE values that mean the server dropped or refused the session.
var terminatedStates = map[string]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

const statementTimeoutState = "57014"

var connectionMessageFragments = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"timed out",
	"terminat",
	"server closed the connection",
	"database is closed",
	"bad connection",
	"unexpected eof",
	"no connection to the server",
}

// IsRetryable reports whether err belongs to the transient set that Do retries:
// connection resets, timeouts, refusals, terminated sessions and statement timeouts.
// Anything else (constraint violations, missing rows, syntax) is returned as is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == statementTimeoutState {
		return true
	}
	return IsConnectionError(err)
}

// IsConnectionError reports whether err indicates the pool itself is unhealthy
// and should be replaced.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || terminatedStates[pgErr.Code]
	}
	if pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range connectionMessageFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
