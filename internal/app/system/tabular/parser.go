// internal/app/system/tabular/parser.go
package tabular

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Row is one data row keyed by column header. Values are float64, string or
// bool. Empty cells are absent.
type Row map[string]any

// Table is the decoded first sheet of a workbook.
type Table struct {
	Headers    []string
	Rows       []Row
	SheetNames []string
}

// Sentinel causes wrapped by ParseError.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoSheets          = errors.New("workbook has no sheets")
	ErrNoHeader          = errors.New("first sheet has no header row")
	ErrNoData            = errors.New("first sheet has no data rows")
)

// ParseError reports that an upload could not be turned into a Table.
type ParseError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes data as the given format and returns its first sheet.
// Only the first row is treated as the header; fully blank rows are skipped.
func Parse(data []byte, format Format) (*Table, error) {
	var (
		sheets []string
		grid   [][]any
		err    error
	)
	switch format {
	case FormatXLSX:
		sheets, grid, err = decodeXLSX(data)
	case FormatXLS:
		sheets, grid, err = decodeXLS(data)
	case FormatCSV:
		sheets, grid, err = decodeCSV(data)
	default:
		return nil, &ParseError{Format: format, Err: ErrUnsupportedFormat}
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &ParseError{Format: format, Reason: "cannot decode file", Err: err}
	}
	if len(sheets) == 0 {
		return nil, &ParseError{Format: format, Err: ErrNoSheets}
	}

	t, err := buildTable(grid)
	if err != nil {
		return nil, &ParseError{Format: format, Err: err}
	}
	t.SheetNames = sheets
	return t, nil
}

// buildTable turns a decoded grid into headers and rows.
func buildTable(grid [][]any) (*Table, error) {
	rows := make([][]any, 0, len(grid))
	for _, r := range grid {
		if !blankRow(r) {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	headers := resolveHeaders(rows[0], width)
	if headers == nil {
		return nil, ErrNoHeader
	}
	if len(rows) == 1 {
		return nil, ErrNoData
	}

	out := make([]Row, 0, len(rows)-1)
	for _, r := range rows[1:] {
		rec := make(Row, len(r))
		for i, v := range r {
			if isEmpty(v) {
				continue
			}
			rec[headers[i]] = v
		}
		out = append(out, rec)
	}
	return &Table{Headers: headers, Rows: out}, nil
}

// resolveHeaders names every column up to width. Header text is kept
// verbatim; blank and repeated headers become "Column N" using the 1-based
// position. Returns nil when no header cell has text.
func resolveHeaders(first []any, width int) []string {
	raw := make([]string, width)
	named := false
	for i := 0; i < width && i < len(first); i++ {
		raw[i] = headerText(first[i])
		if strings.TrimSpace(raw[i]) != "" {
			named = true
		}
	}
	if !named {
		return nil
	}

	headers := make([]string, width)
	taken := make(map[string]bool, width)
	for i, h := range raw {
		if strings.TrimSpace(h) == "" || taken[h] {
			continue
		}
		headers[i] = h
		taken[h] = true
	}
	for i := range headers {
		if headers[i] != "" {
			continue
		}
		name := fmt.Sprintf("Column %d", i+1)
		for k := 2; taken[name]; k++ {
			name = fmt.Sprintf("Column %d (%d)", i+1, k)
		}
		headers[i] = name
		taken[name] = true
	}
	return headers
}

func headerText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func blankRow(r []any) bool {
	for _, v := range r {
		if !isEmpty(v) {
			return false
		}
	}
	return true
}
