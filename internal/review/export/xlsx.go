// Package export renders review records as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"vericore/internal/review/models"
)

const sheet = "Verifications"

var headers = []string{
	"Case Ref",
	"Customer",
	"Date of Birth",
	"Documents",
	"Status",
	"Risk",
	"Face Match",
	"Liveness",
	"Mismatches",
	"Rejection Reason",
	"Assignee",
	"Comments",
	"Finalized At",
}

// XLSX writes one row per record on a single sheet.
type XLSX struct{}

func NewXLSX() *XLSX { return &XLSX{} }

func (XLSX) Write(w io.Writer, records []*models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for i, r := range records {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.CaseRef.String())
		write(2, r.CustomerName())
		write(3, r.Profile.DOB)
		write(4, strings.Join(r.DocumentOrder, ", "))
		write(5, string(r.Status))
		write(6, string(r.Risk))
		write(7, r.FaceMatchScore)
		write(8, yesNo(r.LivenessConfirmed))
		write(9, strings.Join(r.Mismatches, "; "))
		write(10, r.RejectionReason)
		if r.Assignee != nil {
			write(11, r.Assignee.Name)
		}
		write(12, len(r.Comments))
		if r.FinalizedAt != nil {
			write(13, r.FinalizedAt.UTC().Format("2006-01-02 15:04:05"))
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 14)
	_ = f.SetColWidth(sheet, "D", "D", 32)
	_ = f.SetColWidth(sheet, "E", "H", 11)
	_ = f.SetColWidth(sheet, "I", "J", 48)
	_ = f.SetColWidth(sheet, "K", "K", 20)
	_ = f.SetColWidth(sheet, "M", "M", 20)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
