package errors

// SQLite-specific helpers for mapping driver errors to project ErrorCode

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ExtractSQLiteError returns (*sqlite.Error, true) if the root cause is a driver error
func ExtractSQLiteError(err error) (*sqlite.Error, bool) {
	var se *sqlite.Error
	if stderrs.As(Root(err), &se) {
		return se, true
	}
	return nil, false
}

// IsResultCode reports whether the error carries the given SQLite extended result code
func IsResultCode(err error, code int) bool {
	se, ok := ExtractSQLiteError(err)
	return ok && se.Code() == code
}

// IsDuplicateKey reports whether the error is a unique or primary key violation
func IsDuplicateKey(err error) bool {
	if IsResultCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) ||
		IsResultCode(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return true
	}
	// fallback for errors flattened to text by database/sql
	root := Root(err)
	return root != nil && strings.Contains(root.Error(), "UNIQUE constraint failed")
}

// IsBusy reports whether the error is lock contention worth retrying
func IsBusy(err error) bool {
	return IsResultCode(err, sqlite3.SQLITE_BUSY) || IsResultCode(err, sqlite3.SQLITE_LOCKED)
}

// DBErrorCode maps a SQLite driver error to an ErrorCode with an ok flag
// !ok means err wasn't a driver error; caller may fall back to generic handling
func DBErrorCode(err error) (ErrorCode, bool) {
	se, ok := ExtractSQLiteError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return ErrorCodeDuplicateKey, true
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK:
		return ErrorCodeValidation, true
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return ErrorCodeDB, true
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_READONLY:
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromSQLite wraps a driver error with a mapped ErrorCode and message
// If err is nil, returns nil
func FromSQLite(err error, msg string) error {
	if err == nil {
		return nil
	}
	if IsDuplicateKey(err) {
		return Wrap(err, ErrorCodeDuplicateKey, msg)
	}
	if code, ok := DBErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// FromSQLitef is the formatted variant of FromSQLite
func FromSQLitef(err error, format string, a ...any) error {
	return FromSQLite(err, fmt.Sprintf(format, a...))
}

// IsRetryable reports whether a database error represents transient lock
// contention worth retrying at the statement level
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsBusy(err) {
		return true
	}
	s := strings.ToLower(Root(err).Error())
	return strings.Contains(s, "database is locked") || strings.Contains(s, "database table is locked")
}
