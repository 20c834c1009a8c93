package repository

import (
	"context"

	"gorm.io/gorm"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

type FeatureRepository interface {
	Get(ctx context.Context, param *models.GetFeatureParam, opts ...utils.DBOption) ([]models.FeatureEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.FeatureEntity, error)
	Create(ctx context.Context, feature *models.FeatureEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
}

type featureRepository struct {
	db *gorm.DB
}

func NewFeatureRepository(db *gorm.DB) FeatureRepository {
	return &featureRepository{db: db}
}

func (r *featureRepository) Get(ctx context.Context, param *models.GetFeatureParam, opts ...utils.DBOption) ([]models.FeatureEntity, error) {
	var features []models.FeatureEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.FeatureEntity{}).
		Select("base_feature.*, base_customer.name AS customer_name").
		Joins("LEFT JOIN base_customer ON base_customer.id = base_feature.customer_id")
	if len(param.IDs) > 0 {
		db = db.Where("base_feature.id IN ?", param.IDs)
	}
	if param.CustomerID != nil {
		db = db.Where("base_feature.customer_id = ?", *param.CustomerID)
	}
	if param.CategoryID != nil {
		db = db.Where("base_feature.category_id = ?", *param.CategoryID)
	}
	if param.Name != nil {
		db = db.Where("base_feature.name = ?", *param.Name)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	result := db.Find(&features)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return features, nil
}

func (r *featureRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.FeatureEntity, error) {
	var feature models.FeatureEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("id = ?", id).First(&feature)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &feature, nil
}

func (r *featureRepository) Create(ctx context.Context, feature *models.FeatureEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(feature).Error
}

func (r *featureRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&models.FeatureEntity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *featureRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Delete(&models.FeatureEntity{}, id).Error
}
