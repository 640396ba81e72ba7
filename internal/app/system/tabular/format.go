// internal/app/system/tabular/format.go
package tabular

import (
	"path/filepath"
	"strings"
)

// Format identifies the encoding of an uploaded workbook.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// mimeTypes maps each format to the content types browsers send for it.
var mimeTypes = map[Format][]string{
	FormatXLSX: {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	FormatXLS:  {"application/vnd.ms-excel", "application/msexcel", "application/x-msexcel"},
	FormatCSV:  {"text/csv", "application/csv", "text/plain", "application/vnd.ms-excel"},
}

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	switch f {
	case FormatXLSX, FormatXLS, FormatCSV:
		return true
	}
	return false
}

// Ext returns the file extension for f, including the leading dot.
func (f Format) Ext() string {
	if !f.IsValid() {
		return ""
	}
	return "." + string(f)
}

// ParseFormat maps a user-supplied string ("xlsx", ".CSV") to a Format.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	return f, f.IsValid()
}

// FormatFromFilename derives the format from a filename's extension.
func FormatFromFilename(name string) (Format, bool) {
	return ParseFormat(filepath.Ext(name))
}

// AcceptsContentType reports whether contentType is plausible for f.
// application/octet-stream and an empty type are accepted for every format
// because many clients send them for spreadsheets.
func (f Format) AcceptsContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		return f.IsValid()
	}
	for _, m := range mimeTypes[f] {
		if m == ct {
			return true
		}
	}
	return false
}

// ContentType returns the canonical content type stored alongside a blob.
func (f Format) ContentType() string {
	if types := mimeTypes[f]; len(types) > 0 {
		return types[0]
	}
	return "application/octet-stream"
}
