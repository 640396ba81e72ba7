// internal/app/system/tabular/infer.go
package tabular

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// inferValue types a text cell from a format that carries no cell types
// (csv, legacy xls). Empty text is treated as a missing cell.
func inferValue(s string) any {
	if s == "" {
		return nil
	}
	t := strings.TrimSpace(s)
	if numberPattern.MatchString(t) {
		if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	switch strings.ToUpper(t) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	return s
}
