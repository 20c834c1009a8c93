package repository

import (
	"context"

	"gorm.io/gorm"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

type CategoryRepository interface {
	GetAll(ctx context.Context, opts ...utils.DBOption) ([]models.CategoryEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.CategoryEntity, error)
	Create(ctx context.Context, category *models.CategoryEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetAll(ctx context.Context, opts ...utils.DBOption) ([]models.CategoryEntity, error) {
	var categories []models.CategoryEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := tx.Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.CategoryEntity, error) {
	var category models.CategoryEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("id = ?", id).First(&category)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.CategoryEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(category).Error
}

func (r *categoryRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&models.CategoryEntity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *categoryRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Delete(&models.CategoryEntity{}, id).Error
}
