// internal/app/system/tabular/xls.go
package tabular

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// decodeXLS reads the first sheet of a BIFF (Excel 97-2003) workbook.
// The decoder only exposes text, so values are inferred.
func decodeXLS(data []byte) (sheets []string, grid [][]any, err error) {
	// The BIFF reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			sheets, grid = nil, nil
			err = fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, nil, err
	}

	n := wb.NumSheets()
	for i := 0; i < n; i++ {
		if s := wb.GetSheet(i); s != nil {
			sheets = append(sheets, s.Name)
		}
	}
	if len(sheets) == 0 {
		return nil, nil, nil
	}

	first := wb.GetSheet(0)
	if first == nil {
		return sheets, nil, nil
	}
	for r := 0; r <= int(first.MaxRow); r++ {
		row := rowAt(first, r)
		if row == nil {
			continue
		}
		last := row.LastCol()
		cells := make([]any, last)
		for c := row.FirstCol(); c < last; c++ {
			cells[c] = inferValue(row.Col(c))
		}
		grid = append(grid, cells)
	}
	return sheets, grid, nil
}

// rowAt returns row i of s, or nil when the sheet has no record for it.
func rowAt(s *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return s.Row(i)
}
