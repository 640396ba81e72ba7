// internal/app/system/authutil/password.go
package authutil

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength stays under bcrypt's 72-byte input for ASCII.
	MaxPasswordLength = 72
	BcryptCost        = 12
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	ErrPasswordTooBig   = errors.New("password is too long once encoded")
	ErrPasswordCommon   = errors.New("password is too common, choose another")
)

// blocked passwords, lowercase and sorted for binary search.
var blocked = []string{
	"000000", "111111", "123123", "123456", "1234567", "12345678",
	"123456789", "654321", "abc123", "admin", "dragon", "excel",
	"iloveyou", "letmein", "login", "master", "monkey", "password",
	"password1", "qwerty", "qwerty123", "spreadsheet", "sunshine", "welcome",
}

// PasswordRules describes the password policy for registration errors.
func PasswordRules() string {
	return fmt.Sprintf("Use %d to %d characters and avoid common passwords such as \"123456\" or \"password\".",
		MinPasswordLength, MaxPasswordLength)
}

// ValidatePassword enforces the password policy. Length is counted in
// characters; the byte length must also fit bcrypt.
func ValidatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < MinPasswordLength:
		return ErrPasswordTooShort
	case n > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if len(password) > 72 {
		return ErrPasswordTooBig
	}
	if _, found := slices.BinarySearch(blocked, strings.ToLower(password)); found {
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword returns the bcrypt hash of a validated password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(b), err
}

// CheckPassword reports whether password matches hash. Accounts created
// through Google have no hash and never match.
func CheckPassword(password string, hash *string) bool {
	if hash == nil || *hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stratasheet-timing-equalizer"), BcryptCost)

// BurnCompare spends one bcrypt comparison so that logins for unknown or
// password-less users take as long as real ones.
func BurnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
