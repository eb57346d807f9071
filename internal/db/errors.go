package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure on any driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var mErr *sqlite.Error
	if errors.As(err, &mErr) {
		switch mErr.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	if isMattnUnique(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// isCheckViolation reports a CHECK constraint failure on any driver.
func isCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	var mErr *sqlite.Error
	if errors.As(err, &mErr) && mErr.Code() == sqlitelib.SQLITE_CONSTRAINT_CHECK {
		return true
	}
	if isMattnCheck(err) {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}
