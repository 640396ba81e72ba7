// internal/domain/models/dataset.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dataset is an ingested spreadsheet: the stored upload plus the summary
// and chart data computed from its first sheet.
//
// Column names are user data and may contain "." or "$", so numeric column
// statistics are stored as an array rather than a document keyed by name.
type Dataset struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	TitleCI      string             `bson:"title_ci" json:"-"` // folded, for ?sort=title
	OriginalName string             `bson:"original_name" json:"originalName"`
	Format       string             `bson:"format" json:"format"` // xlsx, xls, csv
	ContentType  string             `bson:"content_type" json:"contentType"`
	StoragePath  string             `bson:"storage_path" json:"-"`
	URL          string             `bson:"url" json:"url"`
	Size         int64              `bson:"size" json:"size"`
	SheetNames   []string           `bson:"sheet_names" json:"sheetNames"`

	Summary   DatasetSummary `bson:"summary" json:"summary"`
	GraphData *ChartSeries   `bson:"graph_data" json:"graphData"`

	UploadedBy primitive.ObjectID `bson:"uploaded_by" json:"uploadedBy"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updatedAt"`
}

// DatasetSummary is the persisted form of a sheet summary.
type DatasetSummary struct {
	TotalRows      int             `bson:"total_rows" json:"totalRows"`
	NumericColumns []NumericColumn `bson:"numeric_columns" json:"numericColumns"`
	ColumnNames    []string        `bson:"column_names" json:"columnNames"`
}

// NumericColumn holds the statistics for one column.
type NumericColumn struct {
	Column  string  `bson:"column" json:"column"`
	Average float64 `bson:"average" json:"average"`
	Min     float64 `bson:"min" json:"min"`
	Max     float64 `bson:"max" json:"max"`
	Total   float64 `bson:"total" json:"total"`
}

// ChartSeries is the persisted chart data.
type ChartSeries struct {
	Type     string         `bson:"type" json:"type"`
	Labels   []any          `bson:"labels" json:"labels"`
	Datasets []ChartDataset `bson:"datasets" json:"datasets"`
}

// ChartDataset is one plotted column.
type ChartDataset struct {
	Label string    `bson:"label" json:"label"`
	Data  []float64 `bson:"data" json:"data"`
}
