// internal/app/system/datasum/series.go
package datasum

import (
	"fmt"
	"strings"

	"github.com/dalemusser/stratasheet/internal/app/system/tabular"
)

// ChartLine is the chart type hint sent to clients.
const ChartLine = "line"

// Dataset is one plotted column.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Series is the label/value structure a chart consumes.
type Series struct {
	Type     string    `json:"type"`
	Labels   []any     `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Mapping selects the columns to chart.
type Mapping struct {
	XAxisColumn string `json:"xAxisColumn"`
	YAxisColumn string `json:"yAxisColumn"`
}

// IsZero reports whether m selects nothing.
func (m *Mapping) IsZero() bool {
	return m == nil || (strings.TrimSpace(m.XAxisColumn) == "" && strings.TrimSpace(m.YAxisColumn) == "")
}

// MappingError reports a mapping that names a column the sheet lacks.
type MappingError struct {
	Field  string // "xAxisColumn" or "yAxisColumn"
	Column string
}

func (e *MappingError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %q is not a column in this file", e.Field, e.Column)
}

// BuildSeries derives chart data from rows.
//
// With a mapping, labels come from the X column and, when Y is given, one
// dataset comes from the Y column. Without one, the first two headers are
// used; fewer than two headers yields (nil, nil). Non-numeric cells plot as 0.
func BuildSeries(headers []string, rows []tabular.Row, m *Mapping) (*Series, error) {
	var x, y string
	if m.IsZero() {
		if len(headers) < 2 {
			return nil, nil
		}
		x, y = headers[0], headers[1]
	} else {
		x, y = m.XAxisColumn, m.YAxisColumn
		if x == "" {
			return nil, &MappingError{Field: "xAxisColumn"}
		}
		if !contains(headers, x) {
			return nil, &MappingError{Field: "xAxisColumn", Column: x}
		}
		if y != "" && !contains(headers, y) {
			return nil, &MappingError{Field: "yAxisColumn", Column: y}
		}
	}

	s := &Series{
		Type:     ChartLine,
		Labels:   make([]any, len(rows)),
		Datasets: []Dataset{},
	}
	for i, row := range rows {
		s.Labels[i] = row[x]
	}
	if y != "" {
		data := make([]float64, len(rows))
		for i, row := range rows {
			data[i], _ = numeric(row[y])
		}
		s.Datasets = append(s.Datasets, Dataset{Label: y, Data: data})
	}
	return s, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
