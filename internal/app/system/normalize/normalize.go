// Package normalize holds the canonical forms for values that are compared
// or stored: usernames, emails, roles and statuses.
package normalize

import (
	"strings"
	"unicode"
)

// Username trims surrounding whitespace and collapses internal runs of
// whitespace to one space. Case is preserved; use text.Fold for matching.
func Username(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Email trims whitespace and lowercases.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims whitespace.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims whitespace and lowercases.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status trims whitespace and lowercases.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
