package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// PolicyError holds the unmet strength requirements (internal use only)
type PolicyError struct {
	Unmet []string
}

func (e *PolicyError) Error() string {
	if len(e.Unmet) == 0 {
		return "password validation failed"
	}
	// Generic message for users - the exact unmet rules stay internal
	return "invalid password"
}

// HashPassword applies a salted adaptive hash to the plaintext.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword verifies a plaintext against a stored hash. A malformed
// stored hash reads as non-matching, never as an error for the caller.
func ComparePassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ValidatePassword enforces the strength policy: minimum length plus all four
// character classes (upper, lower, digit, symbol). Every class is mandatory,
// there is no partial credit.
func ValidatePassword(password string) error {
	unmet := make([]string, 0)

	if len(password) < MinPasswordLen {
		unmet = append(unmet, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		unmet = append(unmet, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		unmet = append(unmet, "must contain at least one uppercase letter")
	}
	if !hasLower {
		unmet = append(unmet, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		unmet = append(unmet, "must contain at least one digit")
	}
	if !hasSpecial {
		unmet = append(unmet, "must contain at least one special character")
	}

	if len(unmet) > 0 {
		return &PolicyError{Unmet: unmet}
	}

	return nil
}
