package models

import (
	"time"
)

// Role is the closed set of account roles in the building system.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleResident    Role = "resident"
	RoleGuard       Role = "guard"
	RoleMaintenance Role = "maintenance"
	RoleVisitor     Role = "visitor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleResident, RoleGuard, RoleMaintenance, RoleVisitor:
		return true
	}
	return false
}

// RequiresRoleCode reports whether logins for this role must present the
// role-specific access code. Visitors are the only role without one.
func (r Role) RequiresRoleCode() bool {
	return r != RoleVisitor
}

// Account is a registered identity with role, credential and lock state.
type Account struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	Phone          string // empty means no out-of-band second factor
	SecretHash     string
	Role           Role
	RoleCode       string
	Verified       bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the account is inside an active lock window.
// Expiry is lazy: a lock that has run out simply reads as unlocked.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// LockMinutesRemaining returns the remaining lock time in whole minutes,
// rounded up, and never less than 1 while the lock is active.
func (a *Account) LockMinutesRemaining(now time.Time) int {
	if !a.IsLocked(now) {
		return 0
	}
	secs := int(a.LockedUntil.Sub(now).Seconds())
	minutes := (secs + 59) / 60
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// SecondFactorEnabled reports whether a login must be confirmed with a
// one-time code. The second factor is gated on having a contact channel.
func (a *Account) SecondFactorEnabled() bool {
	return a.Phone != ""
}

// PhoneHint returns the last four digits of the phone for user messaging.
func (a *Account) PhoneHint() string {
	if len(a.Phone) <= 4 {
		return a.Phone
	}
	return a.Phone[len(a.Phone)-4:]
}
