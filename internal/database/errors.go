package database

import (
	"database/sql/driver"
	"errors"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// transientPgCodes are server states worth one retry: admin shutdown,
// internal error on a recycled connection, serialization failure, deadlock.
var transientPgCodes = map[string]bool{
	"57P01": true,
	"XX000": true,
	"40001": true,
	"40P01": true,
}

var transientMessages = []string{
	"connection reset",
	"broken pipe",
	"connection refused",
	"conn closed",
	"server closed the connection",
	"terminating connection",
}

// IsTransient reports whether err is a connection or lock failure that a
// fresh transaction is likely to get past
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientPgCodes[pgErr.Code]
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
