package models

import "time"

// FailedAttempt is one failed authentication attempt. Rows are append-only
// and reference the identity by value: attempts against addresses that never
// resolve to an account are still recorded, both to avoid enumeration and to
// feed origin-level throttling.
type FailedAttempt struct {
	ID          string
	Email       string
	IPAddress   string
	UserAgent   string
	AttemptedAt time.Time
}
