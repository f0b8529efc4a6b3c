package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication flow errors
	ErrInvalidChallenge     = errors.New("challenge answer is missing or wrong")
	ErrWeakSecret           = errors.New("password does not meet the strength policy")
	ErrDuplicateIdentity    = errors.New("a verified account already exists for this email")
	ErrNotFoundOrUnverified = errors.New("account not found or not verified")
	ErrDeliveryFailed       = errors.New("could not deliver the message")
	ErrCodeInvalid          = errors.New("verification code is invalid")
	ErrCodeExpired          = errors.New("verification code has expired")
	ErrTokenNotFoundOrUsed  = errors.New("token is invalid or already used")
	ErrTokenExpired         = errors.New("token has expired")
	ErrRoleCodeMismatch     = errors.New("role code does not match")

	// Brute-force guard denials
	ErrTooManyFromOrigin  = errors.New("too many failed attempts from this address")
	ErrTooManyForIdentity = errors.New("too many failed attempts for this account")
)

// LockedError reports a temporarily locked account together with the
// remaining lock time, so callers can render precise guidance.
type LockedError struct {
	MinutesRemaining int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.MinutesRemaining)
}

// CredentialsError reports a failed secret or role-code check together with
// the attempt budget. Role-code mismatches consume the same budget as secret
// mismatches and are distinguished only by the RoleCode flag.
type CredentialsError struct {
	RoleCode          bool
	Attempts          int
	MaxAttempts       int
	RemainingAttempts int
	LockedNow         bool
}

func (e *CredentialsError) Error() string {
	if e.RoleCode {
		return fmt.Sprintf("invalid role code (%d of %d attempts used)", e.Attempts, e.MaxAttempts)
	}
	return fmt.Sprintf("invalid credentials (%d of %d attempts used)", e.Attempts, e.MaxAttempts)
}
