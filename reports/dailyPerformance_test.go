package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestDailyPerformanceCacheKey(t *testing.T) {
	day := time.Date(2026, 8, 24, 18, 45, 0, 0, time.UTC)
	if got := dailyPerformanceCacheKey(day); got != "Report:DailyPerformance:2026-08-24" {
		t.Fatalf("unexpected cache key %q", got)
	}
}

func TestReportCacheEnabled(t *testing.T) {
	cases := map[string]bool{
		"":     false,
		"0":    false,
		"off":  false,
		"1":    true,
		"true": true,
		"TRUE": true,
		"yes":  true,
		"on":   true,
	}
	for val, want := range cases {
		t.Setenv("ENABLE_REPORT_CACHE", val)
		if got := reportCacheEnabled(); got != want {
			t.Fatalf("ENABLE_REPORT_CACHE=%q: expected %v, got %v", val, want, got)
		}
	}
}

func TestBuildDailyPerformanceWorkbook(t *testing.T) {
	report := &DailyPerformanceReport{
		Date: "2026-08-24",
		Rows: []*DailyPerformanceRow{
			{
				AssetID:   7,
				AssetCode: "CNC-01",
				AssetName: "CNC Mill 1",
				Line:      "Line A",
				OEE:       decimal.NullDecimal{Decimal: decimal.NewFromFloat(78.5), Valid: true},
				TargetOEE: decimal.NewFromInt(85),

				FinancialLoss:    decimal.NewFromInt(1200),
				SnapshotCount:    96,
				SafetyEventCount: 1,
			},
			{
				AssetID:   9,
				AssetCode: "WELD-04",
				AssetName: "Welder 4",
			},
		},
	}

	buf, err := BuildDailyPerformanceWorkbook(report)
	if err != nil {
		t.Fatalf("workbook build failed: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("workbook not readable: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Sheet1", "A1")
	if err != nil || header != "AssetCode" {
		t.Fatalf("expected AssetCode header, got %q (err %v)", header, err)
	}
	code, err := f.GetCellValue("Sheet1", "A2")
	if err != nil || code != "CNC-01" {
		t.Fatalf("expected first row CNC-01, got %q (err %v)", code, err)
	}
	oee, err := f.GetCellValue("Sheet1", "H2")
	if err != nil || oee != "78.5" {
		t.Fatalf("expected OEE 78.5, got %q (err %v)", oee, err)
	}
	code2, err := f.GetCellValue("Sheet1", "A3")
	if err != nil || code2 != "WELD-04" {
		t.Fatalf("expected second row WELD-04, got %q (err %v)", code2, err)
	}
}
