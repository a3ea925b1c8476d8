package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/plantpulse/pulse_backend/models"
	"gorm.io/gorm"
)

type assetReader struct {
	db *gorm.DB
}

func (r *assetReader) getAssets(ctx context.Context, ids []int) []*dataloader.Result[*models.Asset] {
	var results []models.Asset
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Asset](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

func GetAsset(ctx context.Context, id int) (*models.Asset, error) {
	loaders := For(ctx)
	return loaders.assetLoader.Load(ctx, id)()
}

func GetAssets(ctx context.Context, ids []int) ([]*models.Asset, []error) {
	loaders := For(ctx)
	return loaders.assetLoader.LoadMany(ctx, ids)()
}
