package catalog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/utils"
)

// CatalogService manages the customer and category reference tables
// features hang off of.
type CatalogService interface {
	GetCustomers(ctx context.Context) ([]models.CustomerEntity, error)
	GetCustomerByID(ctx context.Context, id uint) (*models.CustomerEntity, error)
	CreateCustomer(ctx context.Context, customer *models.CustomerEntity) error
	UpdateCustomer(ctx context.Context, id uint, fields map[string]interface{}) error
	DeleteCustomer(ctx context.Context, id uint) error

	GetCategories(ctx context.Context) ([]models.CategoryEntity, error)
	GetCategoryByID(ctx context.Context, id uint) (*models.CategoryEntity, error)
	CreateCategory(ctx context.Context, category *models.CategoryEntity) error
	UpdateCategory(ctx context.Context, id uint, fields map[string]interface{}) error
	DeleteCategory(ctx context.Context, id uint) error
}

type catalogService struct {
	log          *logrus.Logger
	customerRepo repository.CustomerRepository
	categoryRepo repository.CategoryRepository
	featureRepo  repository.FeatureRepository
}

func NewCatalogService(
	log *logrus.Logger,
	customerRepo repository.CustomerRepository,
	categoryRepo repository.CategoryRepository,
	featureRepo repository.FeatureRepository,
) CatalogService {
	return &catalogService{
		log:          log,
		customerRepo: customerRepo,
		categoryRepo: categoryRepo,
		featureRepo:  featureRepo,
	}
}

func (s *catalogService) GetCustomers(ctx context.Context) ([]models.CustomerEntity, error) {
	customers, err := s.customerRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get customers: %w", err)
	}
	return customers, nil
}

func (s *catalogService) GetCustomerByID(ctx context.Context, id uint) (*models.CustomerEntity, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return customer, nil
}

func (s *catalogService) CreateCustomer(ctx context.Context, customer *models.CustomerEntity) error {
	if customer.Name == "" {
		return fmt.Errorf("customer name must not be empty")
	}
	existing, err := s.customerRepo.GetByName(ctx, customer.Name)
	if err != nil {
		return fmt.Errorf("failed to check customer name: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("customer %q already exists", customer.Name)
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (s *catalogService) UpdateCustomer(ctx context.Context, id uint, fields map[string]interface{}) error {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	if customer == nil {
		return fmt.Errorf("customer %d not found", id)
	}
	if err := s.customerRepo.Update(ctx, id, fields); err != nil {
		return fmt.Errorf("failed to update customer %d: %w", id, err)
	}
	return nil
}

func (s *catalogService) DeleteCustomer(ctx context.Context, id uint) error {
	features, err := s.featureRepo.Get(ctx, &models.GetFeatureParam{CustomerID: utils.ToPointer(id)})
	if err != nil {
		return fmt.Errorf("failed to check features for customer %d: %w", id, err)
	}
	if len(features) > 0 {
		return fmt.Errorf("customer %d still has %d feature(s)", id, len(features))
	}
	if err := s.customerRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete customer %d: %w", id, err)
	}
	return nil
}

func (s *catalogService) GetCategories(ctx context.Context) ([]models.CategoryEntity, error) {
	categories, err := s.categoryRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

func (s *catalogService) GetCategoryByID(ctx context.Context, id uint) (*models.CategoryEntity, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, category *models.CategoryEntity) error {
	if category.Name == "" {
		return fmt.Errorf("category name must not be empty")
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id uint, fields map[string]interface{}) error {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get category %d: %w", id, err)
	}
	if category == nil {
		return fmt.Errorf("category %d not found", id)
	}
	if err := s.categoryRepo.Update(ctx, id, fields); err != nil {
		return fmt.Errorf("failed to update category %d: %w", id, err)
	}
	return nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uint) error {
	features, err := s.featureRepo.Get(ctx, &models.GetFeatureParam{CategoryID: utils.ToPointer(id)})
	if err != nil {
		return fmt.Errorf("failed to check features for category %d: %w", id, err)
	}
	if len(features) > 0 {
		return fmt.Errorf("category %d still has %d feature(s)", id, len(features))
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	return nil
}
