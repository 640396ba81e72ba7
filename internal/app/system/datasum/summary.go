// internal/app/system/datasum/summary.go
package datasum

import (
	"math"

	"github.com/dalemusser/stratasheet/internal/app/system/tabular"
)

// ColumnStat holds the figures for one numeric column.
type ColumnStat struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Total   float64 `json:"total"`
}

// Summary describes a parsed sheet.
type Summary struct {
	TotalRows      int                   `json:"totalRows"`
	NumericColumns map[string]ColumnStat `json:"numericColumns"`
	ColumnNames    []string              `json:"columnNames"`
}

// Summarize computes per-column statistics. Only float64 cells count;
// numeric-looking strings, booleans and missing cells are skipped. A column
// with no numeric cells is left out of NumericColumns.
func Summarize(headers []string, rows []tabular.Row) Summary {
	s := Summary{
		TotalRows:      len(rows),
		NumericColumns: make(map[string]ColumnStat),
		ColumnNames:    append([]string{}, headers...),
	}

	for _, h := range headers {
		var (
			n     int
			total float64
			lo    = math.Inf(1)
			hi    = math.Inf(-1)
		)
		for _, row := range rows {
			v, ok := numeric(row[h])
			if !ok {
				continue
			}
			n++
			total += v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if n == 0 {
			continue
		}
		s.NumericColumns[h] = ColumnStat{
			Average: total / float64(n),
			Min:     lo,
			Max:     hi,
			Total:   total,
		}
	}
	return s
}

// numeric reports whether v is a real number cell.
func numeric(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
