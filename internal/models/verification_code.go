package models

import "time"

// CodePurpose distinguishes what a one-time code confirms.
type CodePurpose string

const (
	CodePurposeLogin CodePurpose = "login"
	CodePurposeReset CodePurpose = "reset"
)

// VerificationCode is a single-use 6-digit code delivered out of band.
type VerificationCode struct {
	ID        string
	AccountID string
	Phone     string
	Code      string
	Purpose   CodePurpose
	Verified  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code is past its expiry. The boundary is
// inclusive: a code redeemed at exactly ExpiresAt is expired.
func (c *VerificationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
