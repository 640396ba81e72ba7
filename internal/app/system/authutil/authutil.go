// internal/app/system/authutil/authutil.go
// Package authutil holds the credential rules shared by registration,
// login and Google sign-in.
package authutil

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable username users type to log in

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dalemusser/stratasheet/internal/app/system/normalize"
)

// Username limits.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

// Username validation errors
var (
	ErrUsernameRequired = errors.New("Username is required.")
	ErrUsernameTooShort = errors.New("Username must be at least 3 characters.")
	ErrUsernameTooLong  = errors.New("Username must be at most 50 characters.")
	ErrUsernameChars    = errors.New("Username may contain letters, digits, spaces, and . _ - @ only.")
)

// ValidateUsername normalizes a username and checks it against the rules.
// The normalized form is returned for storage.
func ValidateUsername(raw string) (string, error) {
	name := normalize.Username(raw)
	if name == "" {
		return "", ErrUsernameRequired
	}
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength {
		return "", ErrUsernameTooShort
	}
	if n > MaxUsernameLength {
		return "", ErrUsernameTooLong
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" ._-@", r) {
			continue
		}
		return "", ErrUsernameChars
	}
	return name, nil
}

// GoogleUsername picks the username for a new Google account: the display
// name when present, otherwise "user_" plus the first 8 characters of the
// Google subject id.
func GoogleUsername(displayName, googleID string) string {
	if name := normalize.Username(displayName); name != "" {
		return truncate(name, MaxUsernameLength)
	}
	return "user_" + prefix(googleID, 8)
}

// DisambiguatedUsername is the fallback when GoogleUsername is already
// taken by another account.
func DisambiguatedUsername(base, googleID string) string {
	suffix := "_" + prefix(googleID, 8)
	return truncate(base, MaxUsernameLength-utf8.RuneCountInString(suffix)) + suffix
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
