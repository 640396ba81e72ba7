// internal/app/system/datasum/model.go
package datasum

import "github.com/dalemusser/stratasheet/internal/domain/models"

// Model converts s to its stored form. Numeric columns follow ColumnNames order.
func (s Summary) Model() models.DatasetSummary {
	out := models.DatasetSummary{
		TotalRows:      s.TotalRows,
		NumericColumns: make([]models.NumericColumn, 0, len(s.NumericColumns)),
		ColumnNames:    append([]string{}, s.ColumnNames...),
	}
	for _, name := range s.ColumnNames {
		st, ok := s.NumericColumns[name]
		if !ok {
			continue
		}
		out.NumericColumns = append(out.NumericColumns, models.NumericColumn{
			Column:  name,
			Average: st.Average,
			Min:     st.Min,
			Max:     st.Max,
			Total:   st.Total,
		})
	}
	return out
}

// SummaryFromModel is the inverse of Summary.Model.
func SummaryFromModel(m models.DatasetSummary) Summary {
	s := Summary{
		TotalRows:      m.TotalRows,
		NumericColumns: make(map[string]ColumnStat, len(m.NumericColumns)),
		ColumnNames:    m.ColumnNames,
	}
	if s.ColumnNames == nil {
		s.ColumnNames = []string{}
	}
	for _, c := range m.NumericColumns {
		s.NumericColumns[c.Column] = ColumnStat{Average: c.Average, Min: c.Min, Max: c.Max, Total: c.Total}
	}
	return s
}

// Model converts s to its stored form; a nil series stays nil.
func (s *Series) Model() *models.ChartSeries {
	if s == nil {
		return nil
	}
	out := &models.ChartSeries{
		Type:     s.Type,
		Labels:   s.Labels,
		Datasets: make([]models.ChartDataset, len(s.Datasets)),
	}
	for i, d := range s.Datasets {
		out.Datasets[i] = models.ChartDataset{Label: d.Label, Data: d.Data}
	}
	return out
}

// SeriesFromModel is the inverse of Series.Model.
func SeriesFromModel(m *models.ChartSeries) *Series {
	if m == nil {
		return nil
	}
	s := &Series{
		Type:     m.Type,
		Labels:   m.Labels,
		Datasets: make([]Dataset, len(m.Datasets)),
	}
	if s.Labels == nil {
		s.Labels = []any{}
	}
	for i, d := range m.Datasets {
		s.Datasets[i] = Dataset{Label: d.Label, Data: d.Data}
	}
	return s
}
