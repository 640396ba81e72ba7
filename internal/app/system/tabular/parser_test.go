package tabular

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds an xlsx file from rows of cell values on "Data".
func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Data"))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	for r, cols := range rows {
		for c, v := range cols {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Data", cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParse_XLSXKeepsNativeTypes(t *testing.T) {
	data := workbook(t, [][]any{
		{"Month", "Sales", "Open"},
		{"Jan", 100, true},
		{"Feb", "bad", false},
		{"Mar", 300.5, nil},
	})

	tbl, err := Parse(data, FormatXLSX)
	require.NoError(t, err)

	assert.Equal(t, []string{"Month", "Sales", "Open"}, tbl.Headers)
	assert.Equal(t, []string{"Data", "Notes"}, tbl.SheetNames)
	require.Len(t, tbl.Rows, 3)

	assert.Equal(t, Row{"Month": "Jan", "Sales": float64(100), "Open": true}, tbl.Rows[0])
	assert.Equal(t, Row{"Month": "Feb", "Sales": "bad", "Open": false}, tbl.Rows[1])
	assert.Equal(t, Row{"Month": "Mar", "Sales": 300.5}, tbl.Rows[2])
}

func TestParse_XLSXNumericLookingStringStaysString(t *testing.T) {
	data := workbook(t, [][]any{
		{"Code"},
		{"007"},
	})
	tbl, err := Parse(data, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "007", tbl.Rows[0]["Code"])
}

// testdata/sales.xls holds a BIFF8 workbook with the same data as the xlsx
// case, stored as SST labels, NUMBER and RK cells.
func TestParse_XLSFixture(t *testing.T) {
	data, err := os.ReadFile("testdata/sales.xls")
	require.NoError(t, err)

	tbl, err := Parse(data, FormatXLS)
	require.NoError(t, err)

	assert.Equal(t, []string{"Month", "Sales", "Rate"}, tbl.Headers)
	assert.Equal(t, []string{"Sales", "Notes"}, tbl.SheetNames)
	require.Len(t, tbl.Rows, 3)

	assert.Equal(t, Row{"Month": "Jan", "Sales": float64(100), "Rate": 0.5}, tbl.Rows[0])
	assert.Equal(t, Row{"Month": "Feb", "Sales": "bad", "Rate": 2.5}, tbl.Rows[1])
	assert.Equal(t, Row{"Month": "Mar", "Sales": float64(300), "Rate": 1.25}, tbl.Rows[2])
}

func TestParse_BlankAndDuplicateHeaders(t *testing.T) {
	data := workbook(t, [][]any{
		{"Name", nil, "Name", "Score"},
		{"a", 1, 2, 3, 4},
	})
	tbl, err := Parse(data, FormatXLSX)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Column 2", "Column 3", "Score", "Column 5"}, tbl.Headers)
	assert.Equal(t, Row{
		"Name":     "a",
		"Column 2": float64(1),
		"Column 3": float64(2),
		"Score":    float64(3),
		"Column 5": float64(4),
	}, tbl.Rows[0])
}

func TestParse_SynthesizedNameCollision(t *testing.T) {
	data := []byte("Column 2,,x\n1,2,3\n")
	tbl, err := Parse(data, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"Column 2", "Column 2 (2)", "x"}, tbl.Headers)
}

func TestParse_NumericHeaderVerbatim(t *testing.T) {
	data := workbook(t, [][]any{
		{2023, 2024},
		{1, 2},
	})
	tbl, err := Parse(data, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024"}, tbl.Headers)
}

func TestParse_Errors(t *testing.T) {
	headerOnly := workbook(t, [][]any{{"Month", "Sales"}})
	empty := workbook(t, nil)

	tests := []struct {
		name   string
		data   []byte
		format Format
		cause  error
	}{
		{"empty first sheet", empty, FormatXLSX, ErrNoHeader},
		{"header only", headerOnly, FormatXLSX, ErrNoData},
		{"blank csv", []byte("\n,,\n"), FormatCSV, ErrNoHeader},
		{"csv header only", []byte("a,b\n"), FormatCSV, ErrNoData},
		{"unknown format", []byte("a"), Format("ods"), ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Parse(tt.data, tt.format)
			assert.Nil(t, tbl)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestParse_UndecodableBlob(t *testing.T) {
	for _, f := range []Format{FormatXLSX, FormatXLS} {
		t.Run(string(f), func(t *testing.T) {
			_, err := Parse([]byte("definitely not a workbook"), f)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, f, pe.Format)
		})
	}
}

func TestParse_CSVInference(t *testing.T) {
	data := []byte("\xEF\xBB\xBFMonth,Sales,Flag,Note\nJan,100,TRUE,\"a, b\"\nFeb,bad,false,\nMar,3e2,x, 12 \n")
	tbl, err := Parse(data, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Month", "Sales", "Flag", "Note"}, tbl.Headers)
	assert.Equal(t, []string{"Sheet1"}, tbl.SheetNames)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, Row{"Month": "Jan", "Sales": float64(100), "Flag": true, "Note": "a, b"}, tbl.Rows[0])
	assert.Equal(t, Row{"Month": "Feb", "Sales": "bad", "Flag": false}, tbl.Rows[1])
	assert.Equal(t, Row{"Month": "Mar", "Sales": float64(300), "Flag": "x", "Note": float64(12)}, tbl.Rows[2])
}

func TestParse_CSVSkipsBlankRows(t *testing.T) {
	tbl, err := Parse([]byte("\na,b\n\n1,2\n,\n3,4\n"), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Headers)
	assert.Len(t, tbl.Rows, 2)
}

func TestParse_CSVRaggedRows(t *testing.T) {
	tbl, err := Parse([]byte("a,b\n1\n2,3,4\n"), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "Column 3"}, tbl.Headers)
	assert.Equal(t, Row{"a": float64(1)}, tbl.Rows[0])
	assert.Equal(t, Row{"a": float64(2), "b": float64(3), "Column 3": float64(4)}, tbl.Rows[1])
}

func TestParse_CSVRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte("a,b\n\xff\xfe,1\n"), FormatCSV)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want rune
	}{
		{"a,b,c\n1,2,3", ','},
		{"a;b;c\n1;2;3", ';'},
		{"a\tb\tc", '\t'},
		{"\"x;y\",b\n", ','},
		{"single", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sniffDelimiter([]byte(tt.in)), tt.in)
	}
}

func TestInferValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"42", float64(42)},
		{"-1.5", -1.5},
		{".5", 0.5},
		{"1e3", float64(1000)},
		{"1e400", "1e400"},
		{"0x10", "0x10"},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"true", true},
		{"FALSE", false},
		{"yes", "yes"},
		{"12abc", "12abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferValue(tt.in), "inferValue(%q)", tt.in)
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want Format
		ok   bool
	}{
		{"sales.xlsx", FormatXLSX, true},
		{"OLD.XLS", FormatXLS, true},
		{"dir/data.csv", FormatCSV, true},
		{"notes.txt", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatFromFilename(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.name)
		}
	}
}

func TestAcceptsContentType(t *testing.T) {
	assert.True(t, FormatXLSX.AcceptsContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.True(t, FormatCSV.AcceptsContentType("text/csv; charset=utf-8"))
	assert.True(t, FormatXLS.AcceptsContentType("application/octet-stream"))
	assert.True(t, FormatCSV.AcceptsContentType(""))
	assert.False(t, FormatXLSX.AcceptsContentType("image/png"))
	assert.False(t, Format("ods").AcceptsContentType(""))
}
