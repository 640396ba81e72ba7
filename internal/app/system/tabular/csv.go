// internal/app/system/tabular/csv.go
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"
)

// csvSheetName is reported for csv uploads, which have no sheet names.
const csvSheetName = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errNotUTF8 = errors.New("csv is not valid UTF-8")

func decodeCSV(data []byte) ([]string, [][]any, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, nil, errNotUTF8
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var grid [][]any
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		cells := make([]any, len(rec))
		for i, s := range rec {
			cells[i] = inferValue(s)
		}
		grid = append(grid, cells)
	}
	return []string{csvSheetName}, grid, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// first line, outside quotes. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	counts := map[rune]int{}
	quoted := false
	for _, ch := range string(line) {
		switch {
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == ',' || ch == ';' || ch == '\t':
			counts[ch]++
		}
	}
	best := ','
	for _, d := range []rune{';', '\t'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
