package models

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// DailySummary is the once-per-day aggregate per asset, written by the daily
// rollup and read by the action engine, the summary generator and the
// dashboard reports.
//
// Grain: (summary_date, asset_id).
// NOTE: This table is derived data and can be rebuilt from snapshots and the
// historian.
type DailySummary struct {
	SummaryDate time.Time `gorm:"primaryKey;type:date" json:"summary_date"`
	AssetID     int       `gorm:"primaryKey" json:"asset_id"`
	AssetCode   string    `gorm:"size:64;not null;index" json:"asset_code"`

	RuntimeMinutes  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"runtime_minutes"`
	DowntimeMinutes decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"downtime_minutes"`
	TotalOutput     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_output"`
	GoodOutput      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"good_output"`
	TargetOutput    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_output"`

	Availability decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"availability"`
	Performance  decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"performance"`
	Quality      decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"quality"`
	OEE          decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"oee"`

	FinancialLoss decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"financial_loss"`
	// IsEstimated is true when the loss was computed with the default hourly
	// rate because the asset has no cost center.
	IsEstimated bool `gorm:"not null;default:false" json:"is_estimated"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertDailySummaries writes rollup rows idempotently on the composite key,
// so a re-run of the rollup for the same day converges instead of duplicating.
func UpsertDailySummaries(ctx context.Context, summaries []DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "summary_date"}, {Name: "asset_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"asset_code", "runtime_minutes", "downtime_minutes",
				"total_output", "good_output", "target_output",
				"availability", "performance", "quality", "oee",
				"financial_loss", "is_estimated", "updated_at",
			}),
		}).
		Create(&summaries).Error
}

// DailySummariesOn returns the aggregates for one calendar day (UTC).
func DailySummariesOn(ctx context.Context, day time.Time) ([]DailySummary, error) {
	db := config.GetDB()
	var summaries []DailySummary
	err := db.WithContext(ctx).
		Where("summary_date = ?", day.UTC().Truncate(24*time.Hour)).
		Order("asset_id ASC").
		Find(&summaries).Error
	return summaries, err
}
