package reports

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/shopspring/decimal"
)

// DailyPerformanceRow is one asset's line in the daily performance report.
// Figures come from the rollup table; snapshot and incident counts come from
// the live tables so the report stays honest about how much data backs it.
type DailyPerformanceRow struct {
	AssetID   int    `gorm:"column:asset_id" json:"asset_id"`
	AssetCode string `gorm:"column:asset_code" json:"asset_code"`
	AssetName string `gorm:"column:asset_name" json:"asset_name"`
	Line      string `gorm:"column:line" json:"line"`

	RuntimeMinutes  decimal.Decimal     `gorm:"column:runtime_minutes" json:"runtime_minutes"`
	DowntimeMinutes decimal.Decimal     `gorm:"column:downtime_minutes" json:"downtime_minutes"`
	TotalOutput     decimal.Decimal     `gorm:"column:total_output" json:"total_output"`
	TargetOutput    decimal.Decimal     `gorm:"column:target_output" json:"target_output"`
	OEE             decimal.NullDecimal `gorm:"column:oee" json:"oee"`
	TargetOEE       decimal.Decimal     `gorm:"column:target_oee" json:"target_oee"`
	FinancialLoss   decimal.Decimal     `gorm:"column:financial_loss" json:"financial_loss"`
	IsEstimated     bool                `gorm:"column:is_estimated" json:"is_estimated"`

	SnapshotCount    int `gorm:"column:snapshot_count" json:"snapshot_count"`
	SafetyEventCount int `gorm:"column:safety_event_count" json:"safety_event_count"`
}

// DailyPerformanceReport is the report envelope with its own totals so the
// dashboard does not re-add rows client side.
type DailyPerformanceReport struct {
	Date string                 `json:"date"`
	Rows []*DailyPerformanceRow `json:"rows"`

	TotalFinancialLoss decimal.Decimal `json:"total_financial_loss"`
	TotalSafetyEvents  int             `json:"total_safety_events"`
	AnyEstimated       bool            `json:"any_estimated"`
}

func dailyPerformanceCacheKey(day time.Time) string {
	return "Report:DailyPerformance:" + day.UTC().Format("2006-01-02")
}

// GetDailyPerformanceReport builds the per-asset performance report for one
// calendar day (UTC). With ENABLE_REPORT_CACHE set, results are served from
// redis for REPORT_CACHE_TTL_SECONDS.
func GetDailyPerformanceReport(ctx context.Context, day time.Time) (*DailyPerformanceReport, error) {
	started := time.Now()
	defer logSlowReport(ctx, "daily_performance", started, map[string]any{"date": day.UTC().Format("2006-01-02")})

	key := dailyPerformanceCacheKey(day)
	if reportCacheEnabled() {
		var cached DailyPerformanceReport
		if found, err := cacheGet(key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
SELECT
    assets.id AS asset_id,
    assets.code AS asset_code,
    assets.name AS asset_name,
    assets.line,
    assets.target_oee,
    COALESCE(ds.runtime_minutes, 0) AS runtime_minutes,
    COALESCE(ds.downtime_minutes, 0) AS downtime_minutes,
    COALESCE(ds.total_output, 0) AS total_output,
    COALESCE(ds.target_output, 0) AS target_output,
    ds.oee,
    COALESCE(ds.financial_loss, 0) AS financial_loss,
    COALESCE(ds.is_estimated, false) AS is_estimated,
    (
        SELECT COUNT(*)
        FROM snapshots
        WHERE snapshots.asset_id = assets.id
          AND snapshots.captured_at >= ?
          AND snapshots.captured_at < ?
    ) AS snapshot_count,
    (
        SELECT COUNT(*)
        FROM safety_events
        WHERE safety_events.asset_id = assets.id
          AND safety_events.event_timestamp >= ?
          AND safety_events.event_timestamp < ?
    ) AS safety_event_count
FROM
    assets
LEFT JOIN
    daily_summaries AS ds ON ds.asset_id = assets.id AND ds.summary_date = ?
WHERE
    assets.is_active = true
ORDER BY
    assets.code ASC;
`

	db := config.GetDB()
	var rows []*DailyPerformanceRow
	if err := db.WithContext(ctx).Raw(query,
		dayStart, dayEnd,
		dayStart, dayEnd,
		dayStart,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	report := &DailyPerformanceReport{
		Date:               dayStart.Format("2006-01-02"),
		Rows:               rows,
		TotalFinancialLoss: decimal.Zero,
	}
	for _, row := range rows {
		report.TotalFinancialLoss = report.TotalFinancialLoss.Add(row.FinancialLoss)
		report.TotalSafetyEvents += row.SafetyEventCount
		if row.IsEstimated {
			report.AnyEstimated = true
		}
	}

	if reportCacheEnabled() {
		_ = cacheSet(key, report, reportCacheTTL())
	}
	return report, nil
}
