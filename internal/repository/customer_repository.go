package repository

import (
	"context"

	"gorm.io/gorm"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

type CustomerRepository interface {
	GetAll(ctx context.Context, opts ...utils.DBOption) ([]models.CustomerEntity, error)
	GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.CustomerEntity, error)
	GetByName(ctx context.Context, name string, opts ...utils.DBOption) (*models.CustomerEntity, error)
	Create(ctx context.Context, customer *models.CustomerEntity, opts ...utils.DBOption) error
	Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetAll(ctx context.Context, opts ...utils.DBOption) ([]models.CustomerEntity, error) {
	var customers []models.CustomerEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := tx.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *customerRepository) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.CustomerEntity, error) {
	var customer models.CustomerEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("id = ?", id).First(&customer)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &customer, nil
}

func (r *customerRepository) GetByName(ctx context.Context, name string, opts ...utils.DBOption) (*models.CustomerEntity, error) {
	var customer models.CustomerEntity
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := tx.Where("name = ?", name).First(&customer)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &customer, nil
}

func (r *customerRepository) Create(ctx context.Context, customer *models.CustomerEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(customer).Error
}

func (r *customerRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Model(&models.CustomerEntity{}).Where("id = ?", id).Updates(fields).Error
}

func (r *customerRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Delete(&models.CustomerEntity{}, id).Error
}
