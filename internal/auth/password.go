// Package auth implements password hashing, access token issuance and
// the random one-time tokens used for email verification, password
// reset and OTP login.
package auth

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// Password policy: at least 8 characters with one upper-case letter,
// one lower-case letter and one digit. Go's regexp has no lookahead,
// so the classes are checked separately.
var (
	upperRE = regexp.MustCompile(`[A-Z]`)
	lowerRE = regexp.MustCompile(`[a-z]`)
	digitRE = regexp.MustCompile(`[0-9]`)
)

// ValidPassword reports whether a candidate password satisfies the
// complexity policy. It returns a human-readable reason when not.
func ValidPassword(password string) (bool, string) {
	switch {
	case len(password) < 8:
		return false, "password must be at least 8 characters"
	case len(password) > 128:
		return false, "password too long (max 128 characters)"
	case !upperRE.MatchString(password):
		return false, "password must contain an upper-case letter"
	case !lowerRE.MatchString(password):
		return false, "password must contain a lower-case letter"
	case !digitRE.MatchString(password):
		return false, "password must contain a digit"
	}
	return true, ""
}

// HashPassword produces a bcrypt hash of the password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword compares a bcrypt hash against a candidate password.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
