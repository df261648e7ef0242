package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

const sheetName = "Providers"

// maxCellChars is the per-cell limit Excel enforces.
const maxCellChars = 32767

// Service renders extracted records into downloadable formats.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RecordsXLSX returns an XLSX workbook (as bytes) with one row per record in
// result order, phones joined by ", ".
func (s *Service) RecordsXLSX(jobID string, records []entity.Record) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{
		"ID",
		"Governorate",
		"Area",
		"Provider Type",
		"Main Specialty",
		"Sub Specialty",
		"Name",
		"Address",
		"Hotline",
		"Phones",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheetName, 1, 1, style)
	}

	for i, r := range records {
		row := i + 2
		hotline := ""
		if r.Hotline != nil {
			hotline = *r.Hotline
		}
		values := []any{
			r.ID,
			r.Governorate,
			r.Area,
			r.ProviderType,
			r.MainSpecialty,
			r.SubSpecialty,
			r.Name,
			r.Address,
			hotline,
			strings.Join(r.Phones, ", "),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			// Write as text so ids and phone numbers keep leading zeros.
			_ = f.SetCellStr(sheetName, cell, truncate(fmt.Sprint(v), maxCellChars))
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14) // id
	_ = f.SetColWidth(sheetName, "B", "C", 18) // governorate, area
	_ = f.SetColWidth(sheetName, "D", "F", 20) // type, specialties
	_ = f.SetColWidth(sheetName, "G", "G", 36) // name
	_ = f.SetColWidth(sheetName, "H", "H", 48) // address
	_ = f.SetColWidth(sheetName, "I", "J", 24) // hotline, phones
	_ = f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", jobID,
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
