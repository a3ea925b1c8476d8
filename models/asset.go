package models

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/shopspring/decimal"
)

// Asset is the registry row for one production machine or line station.
// Code is the historian's asset identifier; everything downstream joins on it.
type Asset struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Code            string          `gorm:"size:64;not null;unique" json:"code" binding:"required"`
	Name            string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Line            string          `gorm:"size:100" json:"line"`
	TargetOEE       decimal.Decimal `gorm:"type:decimal(20,4);default:85" json:"target_oee"`
	SupervisorName  string          `gorm:"size:100" json:"supervisor_name"`
	SupervisorPhone string          `gorm:"size:20" json:"supervisor_phone"`
	PhotoURL        string          `json:"photo_url"`
	ThumbnailURL    string          `json:"thumbnail_url"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a Asset) GetId() int {
	return a.ID
}

func (a Asset) GetDefault(id int) interface{} {
	return Asset{ID: id, Code: "unknown", Name: "Unknown Asset"}
}

func GetActiveAssets(ctx context.Context) ([]Asset, error) {
	db := config.GetDB()
	var assets []Asset
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&assets).Error
	return assets, err
}

func GetAssetByCode(ctx context.Context, code string) (*Asset, error) {
	db := config.GetDB()
	var asset Asset
	if err := db.WithContext(ctx).Where("code = ?", code).Take(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// AssetsByID loads the given assets and returns them keyed by id.
func AssetsByID(ctx context.Context, ids []int) (map[int]Asset, error) {
	db := config.GetDB()
	var assets []Asset
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error; err != nil {
		return nil, err
	}
	out := make(map[int]Asset, len(assets))
	for _, a := range assets {
		out[a.ID] = a
	}
	return out, nil
}
