package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
)

// Table is a parsed sheet: the first non-empty row is the header and every
// later non-empty row is data, padded to a common width.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
	// oleSignature opens compound documents such as BIFF .xls workbooks.
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ReadTable parses spreadsheet bytes according to their stored content type.
// application/vnd.ms-excel is tried as a workbook first and then as CSV, since
// browsers label CSV uploads with it. Binary legacy workbooks are rejected.
func ReadTable(data []byte, contentType string) (*Table, error) {
	switch constants.NormalizeMIME(contentType) {
	case constants.MIMEXLSX:
		return readWorkbook(data)
	case constants.MIMECSV:
		return readCSV(data)
	case constants.MIMEXLS:
		if bytes.HasPrefix(data, oleSignature) {
			return nil, common.ParseError("legacy .xls workbooks are not supported, save the file as .xlsx or .csv",
				errors.New("compound document signature"))
		}
		t, err := readWorkbook(data)
		if err == nil {
			return t, nil
		}
		if !utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
			return nil, common.ParseError("spreadsheet is neither a workbook nor UTF-8 CSV", err)
		}
		t, csvErr := readCSV(data)
		if csvErr != nil {
			return nil, common.ParseError("legacy spreadsheet is neither a workbook nor CSV", errors.Join(err, csvErr))
		}
		return t, nil
	default:
		return nil, common.ValidationError("content type " + contentType + " is not tabular")
	}
}

func readWorkbook(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.ParseError("open workbook", err)
	}
	defer func() { _ = f.Close() }()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, common.ParseError("read sheet "+sheet, err)
		}
		if t := buildTable(sheet, rows); t != nil {
			return t, nil
		}
	}
	return &Table{}, nil
}

func readCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.ParseError("read csv", fmt.Errorf("line %d: %w", len(rows)+1, err))
		}
		rows = append(rows, rec)
	}
	if t := buildTable("", rows); t != nil {
		return t, nil
	}
	return &Table{}, nil
}

func buildTable(sheet string, rows [][]string) *Table {
	var header []string
	var data [][]string
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		if header == nil {
			header = trimCells(row)
			continue
		}
		data = append(data, trimCells(row))
	}
	if header == nil {
		return nil
	}

	width := len(header)
	for _, row := range data {
		width = max(width, len(row))
	}
	for len(header) < width {
		header = append(header, fmt.Sprintf("column_%d", len(header)+1))
	}
	for i, row := range data {
		for len(row) < width {
			row = append(row, "")
		}
		data[i] = row
	}
	return &Table{Sheet: sheet, Header: header, Rows: data}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
