// Package service holds the business rules between HTTP handlers and the
// repositories: listing normalisation and lifecycle, moderation, accounts,
// messaging, billing and bulk import.
package service

import "errors"

// ValidationError is a client mistake reported as 400 with Msg as the body.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid builds a ValidationError with a free-form message.
func Invalid(msg string) error { return &ValidationError{Msg: msg} }

// Required builds the "<field> is required" error.
func Required(field string) error {
	return &ValidationError{Field: field, Msg: field + " is required"}
}

var (
	// ErrUnauthorized means bad credentials or an unusable token (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotOwner is returned when a user edits a listing they do not own.
	ErrNotOwner = errors.New("You are not authorized to update this car")
	// ErrPermission is returned by Authorize for a missing admin capability.
	ErrPermission = errors.New("forbidden")
	// ErrBanned blocks banned accounts from signing in.
	ErrBanned = errors.New("account is banned")
	// ErrOTPExpired and ErrOTPMismatch are the two code failures.
	ErrOTPExpired  = errors.New("OTP has expired")
	ErrOTPMismatch = errors.New("Invalid OTP")
	// ErrOTPRequest means the request id is unknown or already consumed.
	ErrOTPRequest = errors.New("Invalid request ID")
)
