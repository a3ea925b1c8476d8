package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/plantpulse/pulse_backend/models"
	"gorm.io/gorm"
)

type costCenterReader struct {
	db *gorm.DB
}

// getCostCentersByAsset batches lookups keyed by asset id, not cost-center
// id, because callers always come in holding an asset. An asset with no cost
// center resolves to nil; the caller falls back to the default rate and
// flags the figure estimated.
func (r *costCenterReader) getCostCentersByAsset(ctx context.Context, assetIDs []int) []*dataloader.Result[*models.CostCenter] {
	var results []models.CostCenter
	err := r.db.WithContext(ctx).Where("asset_id IN ?", assetIDs).Find(&results).Error
	if err != nil {
		return handleError[*models.CostCenter](len(assetIDs), err)
	}

	resultMap := make(map[int]*models.CostCenter, len(results))
	for i := range results {
		resultMap[results[i].AssetID] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*models.CostCenter], 0, len(assetIDs))
	for _, id := range assetIDs {
		loaderResults = append(loaderResults, &dataloader.Result[*models.CostCenter]{Data: resultMap[id]})
	}
	return loaderResults
}

// GetCostCenterForAsset returns the asset's cost center or nil when finance
// has not configured one.
func GetCostCenterForAsset(ctx context.Context, assetID int) (*models.CostCenter, error) {
	loaders := For(ctx)
	return loaders.costCenterLoader.Load(ctx, assetID)()
}
