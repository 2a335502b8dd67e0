package cryptox

import (
	"strings"
	"unicode"
)

// Password policy limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// commonPasswords is a small deny-list of passwords seen in every breach
// corpus. Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password": {}, "12345678": {}, "qwerty": {}, "abc123": {},
	"password123": {}, "admin": {}, "letmein": {}, "welcome": {},
	"monkey": {}, "1234567890": {}, "password1": {}, "qwerty123": {},
	"123456789": {}, "iloveyou": {},
}

// ValidatePassword checks a candidate password against the account password
// policy: length bounds, upper/lower/digit/special classes, no whitespace,
// and not on the common-password deny-list. It returns every violated rule so
// clients can surface all of them at once.
func ValidatePassword(password string) []string {
	if password == "" {
		return []string{"password is required"}
	}

	var errs []string
	if len(password) < MinPasswordLength {
		errs = append(errs, "password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		errs = append(errs, "password must not exceed 128 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial, hasSpace bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
			hasSpace = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		errs = append(errs, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "password must contain at least one number")
	}
	if !hasSpecial {
		errs = append(errs, "password must contain at least one special character")
	}
	if hasSpace {
		errs = append(errs, "password must not contain spaces")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		errs = append(errs, "password is too common, please choose a stronger password")
	}

	return errs
}
