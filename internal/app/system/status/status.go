// Package status defines account status values.
package status

import "github.com/dalemusser/stratasheet/internal/app/system/normalize"

const (
	Active   = "active"
	Disabled = "disabled"
)

// IsValid reports whether s is exactly a known status.
func IsValid(s string) bool {
	return s == Active || s == Disabled
}

// Parse normalizes s and reports whether the result is a known status.
// An empty input parses as Active.
func Parse(s string) (string, bool) {
	n := normalize.Status(s)
	if n == "" {
		return Active, true
	}
	return n, IsValid(n)
}

// IsActive reports whether s normalizes to Active. Empty counts as active.
func IsActive(s string) bool {
	n, ok := Parse(s)
	return ok && n == Active
}
