package models

import "time"

// TokenKind is the closed set of single-use token classes.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenLoginSession      TokenKind = "login_session"
	TokenPasswordReset     TokenKind = "password_reset"
)

// AuthToken is a single-use opaque token. Only the SHA-256 digest of the raw
// value is stored. ExpiresAt is nil for kinds that never expire by time
// (email verification tokens live until consumed).
type AuthToken struct {
	ID        string
	AccountID string
	TokenHash string
	Kind      TokenKind
	ExpiresAt *time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Used reports whether the token has already been redeemed.
func (t *AuthToken) Used() bool {
	return t.UsedAt != nil
}

// Expired reports whether the token is past its expiry. The boundary is
// inclusive: redeeming at exactly ExpiresAt fails as expired.
func (t *AuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
