package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/plantpulse/pulse_backend/utils"
	"github.com/xuri/excelize/v2"
)

// BuildDailyPerformanceWorkbook renders the daily performance report as an
// xlsx workbook in memory.
func BuildDailyPerformanceWorkbook(report *DailyPerformanceReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}

	// Add headers
	headers := []string{"AssetCode", "AssetName", "Line", "RuntimeMin", "DowntimeMin",
		"TotalOutput", "TargetOutput", "OEE", "TargetOEE", "FinancialLoss", "Estimated",
		"Snapshots", "SafetyEvents"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, h)
	}

	// Add data
	for rowIdx, d := range report.Rows {
		oee := ""
		if d.OEE.Valid {
			oee = d.OEE.Decimal.Round(2).String()
		}
		values := []interface{}{
			d.AssetCode, d.AssetName, d.Line,
			d.RuntimeMinutes.Round(2).String(), d.DowntimeMinutes.Round(2).String(),
			d.TotalOutput.Round(2).String(), d.TargetOutput.Round(2).String(),
			oee, d.TargetOEE.Round(2).String(),
			d.FinancialLoss.Round(2).String(), d.IsEstimated,
			d.SnapshotCount, d.SafetyEventCount,
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

// ExportDailyPerformanceToGCS writes the workbook to cloud storage and
// returns its public URL. Used by the export endpoint when a bucket is
// configured; without one the handler streams the bytes instead.
func ExportDailyPerformanceToGCS(ctx context.Context, report *DailyPerformanceReport) (string, error) {
	buf, err := BuildDailyPerformanceWorkbook(report)
	if err != nil {
		return "", err
	}
	object := fmt.Sprintf("reports/daily-performance-%s-%s.xlsx",
		report.Date, utils.GenerateUniqueFilename())
	if err := utils.UploadBytesToGCS(ctx, object, buf.Bytes(),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"); err != nil {
		return "", err
	}
	return utils.PublicObjectURL(object), nil
}
