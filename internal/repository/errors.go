// Package repository defines the SQL data access layer and the error values
// shared across repositories. Sentinel values let higher layers tell apart
// failure scenarios without inspecting driver errors: ErrForbidden means the
// caller does not own the resource, ErrConflict means a uniqueness or state
// conflict, and the ErrXNotFound values replace sql.ErrNoRows.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert violates a unique key or a state
// change would overwrite a conflicting value. Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

// ErrNoChange is returned by conditional updates whose target is already in
// the requested state (feature an already featured car, verify a verified
// user, ...). Handlers translate this into 400.
var ErrNoChange = errors.New("already in requested state")

var (
	ErrCarNotFound          = errors.New("Car not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrAdminNotFound        = errors.New("admin not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrOTPNotFound          = errors.New("otp request not found")
	ErrReportNotFound       = errors.New("report not found")
	ErrSavedSearchNotFound  = errors.New("saved search not found")
	ErrPackageNotFound      = errors.New("subscription package not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrMethodNotFound       = errors.New("payment method not found")
)

// ErrNotPending is returned when a moderation decision targets a listing
// that is not awaiting approval.
var ErrNotPending = errors.New("Car listing is not pending approval")

// Execer is satisfied by *sql.DB and *sql.Tx so the same statements can run
// standalone or inside a caller's transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isDuplicate reports MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// notFound maps sql.ErrNoRows onto the given sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// affected returns sentinel when res reports zero matched rows.
func affected(res sql.Result, sentinel error) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel
	}
	return nil
}

// offset converts a 1-based page into a row offset.
func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
