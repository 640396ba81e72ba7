// internal/app/system/tabular/xlsx.go
package tabular

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first sheet of an Office Open XML workbook, keeping
// the cell types the workbook declares.
func decodeXLSX(data []byte) ([]string, [][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	first := sheets[0]

	raw, err := f.GetRows(first, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", first, err)
	}

	grid := make([][]any, len(raw))
	for r, cols := range raw {
		row := make([]any, len(cols))
		for c, text := range cols {
			if text == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, nil, err
			}
			typ, err := f.GetCellType(first, cell)
			if err != nil {
				return nil, nil, fmt.Errorf("cell %s: %w", cell, err)
			}
			row[c] = xlsxValue(typ, text)
		}
		grid[r] = row
	}
	return sheets, grid, nil
}

// xlsxValue converts a raw cell value according to its declared type.
// Strings stay strings even when they look numeric.
func xlsxValue(typ excelize.CellType, text string) any {
	switch typ {
	case excelize.CellTypeBool:
		return text == "1" || text == "true" || text == "TRUE"
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
		return text
	default:
		return text
	}
}
