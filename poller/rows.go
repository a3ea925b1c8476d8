package poller

import (
	"time"

	"github.com/shopspring/decimal"
)

// TableCategory names one historian table family the fetcher can query.
type TableCategory string

const (
	CategoryOutput   TableCategory = "output"
	CategoryDowntime TableCategory = "downtime"
	CategoryOEE      TableCategory = "oee"
	CategoryQuality  TableCategory = "quality"
	CategoryLabor    TableCategory = "labor"
)

func AllCategories() []TableCategory {
	return []TableCategory{CategoryOutput, CategoryDowntime, CategoryOEE, CategoryQuality, CategoryLabor}
}

// Historian rows are tagged variants with explicit field sets, one type per
// table category. They are validated at the fetch boundary; nothing dynamic
// reaches the transformer.

type OutputRow struct {
	ID           int             `gorm:"column:id" json:"id"`
	AssetCode    string          `gorm:"column:asset_code" json:"asset_code" validate:"required"`
	RecordedAt   time.Time       `gorm:"column:recorded_at" json:"recorded_at" validate:"required"`
	ActualOutput decimal.Decimal `gorm:"column:actual_output" json:"actual_output"`
	TargetOutput decimal.Decimal `gorm:"column:target_output" json:"target_output"`
}

func (OutputRow) TableName() string { return "asset_output_log" }

type DowntimeRow struct {
	ID         int             `gorm:"column:id" json:"id"`
	AssetCode  string          `gorm:"column:asset_code" json:"asset_code" validate:"required"`
	StartedAt  time.Time       `gorm:"column:started_at" json:"started_at" validate:"required"`
	Minutes    decimal.Decimal `gorm:"column:minutes" json:"minutes" validate:"required"`
	ReasonCode string          `gorm:"column:reason_code" json:"reason_code" validate:"required"`
	Detail     string          `gorm:"column:detail" json:"detail"`
}

func (DowntimeRow) TableName() string { return "asset_downtime_log" }

type OEERow struct {
	ID                 int             `gorm:"column:id" json:"id"`
	AssetCode          string          `gorm:"column:asset_code" json:"asset_code" validate:"required"`
	RecordedAt         time.Time       `gorm:"column:recorded_at" json:"recorded_at" validate:"required"`
	PlannedMinutes     decimal.Decimal `gorm:"column:planned_minutes" json:"planned_minutes"`
	DowntimeMinutes    decimal.Decimal `gorm:"column:downtime_minutes" json:"downtime_minutes"`
	TotalUnits         decimal.Decimal `gorm:"column:total_units" json:"total_units"`
	GoodUnits          decimal.Decimal `gorm:"column:good_units" json:"good_units"`
	IdealRatePerMinute decimal.Decimal `gorm:"column:ideal_rate_per_minute" json:"ideal_rate_per_minute"`
}

func (OEERow) TableName() string { return "asset_oee_log" }

type QualityRow struct {
	ID         int             `gorm:"column:id" json:"id"`
	AssetCode  string          `gorm:"column:asset_code" json:"asset_code" validate:"required"`
	RecordedAt time.Time       `gorm:"column:recorded_at" json:"recorded_at" validate:"required"`
	TotalUnits decimal.Decimal `gorm:"column:total_units" json:"total_units"`
	GoodUnits  decimal.Decimal `gorm:"column:good_units" json:"good_units"`
	ScrapUnits decimal.Decimal `gorm:"column:scrap_units" json:"scrap_units"`
}

func (QualityRow) TableName() string { return "asset_quality_log" }

type LaborRow struct {
	ID          int             `gorm:"column:id" json:"id"`
	AssetCode   string          `gorm:"column:asset_code" json:"asset_code" validate:"required"`
	RecordedAt  time.Time       `gorm:"column:recorded_at" json:"recorded_at" validate:"required"`
	HeadCount   int             `gorm:"column:head_count" json:"head_count"`
	HoursWorked decimal.Decimal `gorm:"column:hours_worked" json:"hours_worked"`
}

func (LaborRow) TableName() string { return "asset_labor_log" }

// RawBatch is everything one poll pulled from the historian for one window.
type RawBatch struct {
	WindowStart time.Time
	WindowEnd   time.Time

	Output   []OutputRow
	Downtime []DowntimeRow
	OEE      []OEERow
	Quality  []QualityRow
	Labor    []LaborRow
}
