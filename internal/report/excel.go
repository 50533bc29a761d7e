package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"saferide-service/internal/repository"
)

const sheetName = "Detections"

var headers = []string{"Timestamp", "Class", "Confidence", "Filename", "S3 URL"}

// Build renders the detection records into a tabular xlsx document at path.
// Records arrive newest first and keep that order in the sheet.
func Build(records []repository.DetectionLog, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4CAF50"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, rec := range records {
		values := []interface{}{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.ClassLabel,
			fmt.Sprintf("%.2f", rec.Confidence),
			rec.Filename,
			rec.S3URL,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "D", "E", 40)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
