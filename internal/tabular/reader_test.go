package tabular

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
)

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestReadTable_Workbook(t *testing.T) {
	data := workbookBytes(t, [][]any{
		{"Name", "Area", "Phone"},
		{"Al Salam", "Nasr City", 222222},
		{},
		{"Cleo Lab", "Dokki"},
	})

	tbl, err := ReadTable(data, constants.MIMEXLSX)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if tbl.Sheet != "Sheet1" {
		t.Errorf("Sheet = %q", tbl.Sheet)
	}
	if strings.Join(tbl.Header, ",") != "Name,Area,Phone" {
		t.Errorf("Header = %v", tbl.Header)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank row skipped)", len(tbl.Rows))
	}
	if len(tbl.Rows[1]) != 3 || tbl.Rows[1][2] != "" {
		t.Errorf("short row not padded: %v", tbl.Rows[1])
	}
}

func TestReadTable_CSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,area\n\"Clinic, A\",Giza\n\n,\nB,Maadi,extra\n")...)

	tbl, err := ReadTable(data, "text/csv; charset=utf-8")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if tbl.Header[0] != "name" {
		t.Errorf("BOM not stripped: %q", tbl.Header[0])
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != "Clinic, A" {
		t.Errorf("quoted cell = %q", tbl.Rows[0][0])
	}
	if len(tbl.Header) != 3 || tbl.Header[2] != "column_3" {
		t.Errorf("header not widened: %v", tbl.Header)
	}
}

func TestReadTable_LegacyExcelFallsBackToCSV(t *testing.T) {
	tbl, err := ReadTable([]byte("a,b\n1,2\n"), constants.MIMEXLS)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][1] != "2" {
		t.Errorf("rows = %v", tbl.Rows)
	}
}

func TestReadTable_LegacyBinaryWorkbookRejected(t *testing.T) {
	biff := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, bytes.Repeat([]byte{0x00, 0x9F, 0x2C, 0x0A, 0xFE}, 800)...)
	noSignature := bytes.Repeat([]byte{0xFF, 0x2C, 0xC3, 0x0A}, 1024)

	tests := []struct {
		name string
		data []byte
	}{
		{"compound document", biff},
		{"binary without signature", noSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadTable(tt.data, constants.MIMEXLS)
			if !errors.Is(err, common.ErrParse) {
				t.Fatalf("ReadTable() = %+v, %v, want ErrParse", tbl, err)
			}
		})
	}
}

func TestReadTable_Errors(t *testing.T) {
	if _, err := ReadTable([]byte("%PDF"), constants.MIMEPDF); !errors.Is(err, common.ErrValidation) {
		t.Errorf("pdf error = %v, want ErrValidation", err)
	}
	if _, err := ReadTable([]byte("not a zip"), constants.MIMEXLSX); !errors.Is(err, common.ErrParse) {
		t.Errorf("corrupt xlsx error = %v, want ErrParse", err)
	}
}

func TestTable_Render(t *testing.T) {
	tbl := &Table{
		Header: []string{"name", "phone"},
		Rows:   [][]string{{"A|B", "1\n2"}, {"C", "3"}, {"D", "4"}},
	}
	got := tbl.Render(Window{Start: 1, End: 3})
	want := "| name | phone |\n| --- | --- |\n| C | 3 |\n| D | 4 |\n"
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
	if first := tbl.Render(Window{Start: 0, End: 1}); !strings.Contains(first, "| A/B | 1 2 |") {
		t.Errorf("cells not escaped: %q", first)
	}
}
