package models

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/shopspring/decimal"
)

// Snapshot is one point-in-time measurement for one asset, written by the
// poller every tick. Rows are immutable once written and purged once older
// than the retention window.
//
// Grain: (asset_id, captured_at). Re-polls of an overlapping window hit the
// unique index and are dropped, which is what makes the fetch idempotent.
type Snapshot struct {
	ID         int       `gorm:"primary_key" json:"id"`
	AssetID    int       `gorm:"not null;uniqueIndex:uq_snap_asset_ts,priority:1;index:idx_snap_asset_time,priority:1" json:"asset_id"`
	AssetCode  string    `gorm:"size:64;not null;index" json:"asset_code"`
	CapturedAt time.Time `gorm:"not null;uniqueIndex:uq_snap_asset_ts,priority:2;index:idx_snap_asset_time,priority:2" json:"captured_at"`

	ActualOutput decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_output"`
	TargetOutput decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_output"`

	// VariancePercent and OEE are null when a denominator was zero or an
	// input was missing; status carries "unknown" in that case.
	VariancePercent decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"variance_percent"`
	Status          SnapshotStatus      `gorm:"size:16;not null" json:"status"`
	OEE             decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"oee"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SnapshotsSince returns snapshots captured in [from, to), newest first.
func SnapshotsSince(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	db := config.GetDB()
	var snapshots []Snapshot
	err := db.WithContext(ctx).
		Where("captured_at >= ? AND captured_at < ?", from, to).
		Order("captured_at DESC").
		Find(&snapshots).Error
	return snapshots, err
}

// LatestSnapshotPerAsset returns each asset's most recent snapshot within the
// retention window.
func LatestSnapshotPerAsset(ctx context.Context) ([]Snapshot, error) {
	db := config.GetDB()
	var snapshots []Snapshot
	sql := `
SELECT DISTINCT ON (asset_id) *
FROM snapshots
ORDER BY asset_id, captured_at DESC
`
	err := db.WithContext(ctx).Raw(sql).Scan(&snapshots).Error
	return snapshots, err
}
