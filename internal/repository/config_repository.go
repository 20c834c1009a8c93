package repository

import (
	"context"

	"gorm.io/gorm"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

type ConfigRepository interface {
	Get(ctx context.Context, param *models.GetConfigParam, opts ...utils.DBOption) ([]models.ConfigEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.ConfigEntity, error)
	Create(ctx context.Context, config *models.ConfigEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
	DeleteByFeatureID(ctx context.Context, featureID uint, opts ...utils.DBOption) error
}

type configRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) Get(ctx context.Context, param *models.GetConfigParam, opts ...utils.DBOption) ([]models.ConfigEntity, error) {
	var configs []models.ConfigEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if param.FeatureID != nil {
		db = db.Where("feature_id = ?", *param.FeatureID)
	}
	if param.Name != nil {
		db = db.Where("name = ?", *param.Name)
	}
	result := db.Find(&configs)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return configs, nil
}

func (r *configRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.ConfigEntity, error) {
	var config models.ConfigEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("id = ?", id).First(&config)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &config, nil
}

func (r *configRepository) Create(ctx context.Context, config *models.ConfigEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(config).Error
}

func (r *configRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&models.ConfigEntity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *configRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Delete(&models.ConfigEntity{}, id).Error
}

func (r *configRepository) DeleteByFeatureID(ctx context.Context, featureID uint, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Where("feature_id = ?", featureID).Delete(&models.ConfigEntity{}).Error
}
