package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Datasheets"

// WriteXLSX renders the report as an XLSX workbook for operators who review
// outcomes in a spreadsheet. The CSV remains the resume source of truth.
func WriteXLSX(path string, rows []Row) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	index, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := Header()
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(xlsxSheet, cell, name); err != nil {
			return err
		}
	}
	for i, row := range rows {
		for col, val := range row.fields() {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(xlsxSheet, cell, val); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
