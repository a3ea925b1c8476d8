package models

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostCenter maps an asset to its standard hourly rate. Read-only reference
// data from the pipeline's perspective; finance owns the values.
type CostCenter struct {
	ID         int             `gorm:"primary_key" json:"id"`
	AssetID    int             `gorm:"not null;uniqueIndex" json:"asset_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	HourlyRate decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"hourly_rate"`
	Currency   string          `gorm:"size:8;default:USD" json:"currency"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c CostCenter) GetId() int {
	return c.ID
}

func (c CostCenter) GetDefault(id int) interface{} {
	return CostCenter{ID: id, Name: "Unknown Cost Center"}
}

// HourlyRateForAsset returns the asset's standard rate, or the configured
// default when no cost center exists. The second return reports whether the
// rate is estimated: callers must flag derived figures accordingly, never
// fail on missing reference data.
func HourlyRateForAsset(ctx context.Context, assetID int) (decimal.Decimal, bool, error) {
	db := config.GetDB()
	var cc CostCenter
	err := db.WithContext(ctx).Where("asset_id = ?", assetID).Take(&cc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return config.DefaultHourlyRate(), true, nil
		}
		return config.DefaultHourlyRate(), true, err
	}
	return cc.HourlyRate, false, nil
}

// CostCentersByAssetID loads rates for the given assets keyed by asset id.
func CostCentersByAssetID(ctx context.Context, assetIDs []int) (map[int]CostCenter, error) {
	db := config.GetDB()
	var centers []CostCenter
	if err := db.WithContext(ctx).Where("asset_id IN ?", assetIDs).Find(&centers).Error; err != nil {
		return nil, err
	}
	out := make(map[int]CostCenter, len(centers))
	for _, c := range centers {
		out[c.AssetID] = c
	}
	return out, nil
}
