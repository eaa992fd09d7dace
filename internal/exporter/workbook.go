package exporter

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"twexport/pkg/contracts/domain"
)

// Sheet names of an exported workbook.
const (
	SheetCombined      = "Combined"
	SheetInstitutional = "Institutional"
)

// WorkbookWriter serializes export tables to a spreadsheet.
type WorkbookWriter interface {
	Write(combined *domain.CombinedTable, inst *domain.InstitutionalTable) ([]byte, error)
}

// ExcelWriter writes .xlsx workbooks.
type ExcelWriter struct{}

// NewExcelWriter returns a WorkbookWriter producing .xlsx files.
func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{}
}

// Write implements WorkbookWriter.
func (ExcelWriter) Write(combined *domain.CombinedTable, inst *domain.InstitutionalTable) ([]byte, error) {
	return BuildWorkbook(combined, inst)
}

// BuildWorkbook writes the combined table to the Combined sheet and, when
// inst holds records, the raw institutional table to the Institutional
// sheet. Null cells are left empty.
func BuildWorkbook(combined *domain.CombinedTable, inst *domain.InstitutionalTable) ([]byte, error) {
	if combined == nil {
		return nil, fmt.Errorf("build workbook: nil combined table")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetCombined); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeCombined(f, headerStyle, combined); err != nil {
		return nil, err
	}

	if !inst.IsEmpty() {
		if _, err := f.NewSheet(SheetInstitutional); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", SheetInstitutional, err)
		}
		if err := writeInstitutional(f, headerStyle, inst); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeHeader(f *excelize.File, sheet string, style int, labels []string) error {
	for i, label := range labels {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, label); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}
	if len(labels) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(labels), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeCombined(f *excelize.File, style int, t *domain.CombinedTable) error {
	if err := writeHeader(f, SheetCombined, style, t.Columns); err != nil {
		return err
	}
	for r, row := range t.Rows {
		rowNum := r + 2
		if err := f.SetCellStr(SheetCombined, fmt.Sprintf("A%d", rowNum), row.Date); err != nil {
			return fmt.Errorf("write date row %d: %w", rowNum, err)
		}
		for c, v := range row.Values {
			if !v.Valid {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, rowNum)
			if err := f.SetCellFloat(SheetCombined, cell, v.Value, -1, 64); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	return f.SetColWidth(SheetCombined, "A", "A", 12)
}

func writeInstitutional(f *excelize.File, style int, t *domain.InstitutionalTable) error {
	labels := []string{domain.ColumnTradeDate, domain.ColumnSecurityID, domain.ColumnSecurityName}
	for _, c := range t.Columns {
		labels = append(labels, c.Label)
	}
	if err := writeHeader(f, SheetInstitutional, style, labels); err != nil {
		return err
	}
	for r, rec := range t.Records {
		rowNum := r + 2
		for c, s := range []string{rec.DateKey(), rec.SecurityID, rec.SecurityName} {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := f.SetCellStr(SheetInstitutional, cell, s); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
		for c, col := range t.Columns {
			v := t.Cell(rec, col)
			if !v.Valid {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+4, rowNum)
			if err := f.SetCellFloat(SheetInstitutional, cell, v.Decimal.InexactFloat64(), -1, 64); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	return f.SetColWidth(SheetInstitutional, "A", "C", 12)
}
