package configs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
)

type ConfigService interface {
	Get(ctx context.Context, param *models.GetConfigParam) ([]models.ConfigEntity, error)
	GetByID(ctx context.Context, id uint) (*models.ConfigEntity, error)
	Create(ctx context.Context, cfg *models.ConfigEntity) error
	Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.ConfigEntity, error)
	Delete(ctx context.Context, id uint) error
	CleanupInvalid(ctx context.Context) (int, error)
}

type configService struct {
	log         *logrus.Logger
	configRepo  repository.ConfigRepository
	featureRepo repository.FeatureRepository
}

func NewConfigService(log *logrus.Logger, configRepo repository.ConfigRepository, featureRepo repository.FeatureRepository) ConfigService {
	return &configService{
		log:         log,
		configRepo:  configRepo,
		featureRepo: featureRepo,
	}
}

func (s *configService) Get(ctx context.Context, param *models.GetConfigParam) ([]models.ConfigEntity, error) {
	configs, err := s.configRepo.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to get configs: %w", err)
	}
	return configs, nil
}

func (s *configService) GetByID(ctx context.Context, id uint) (*models.ConfigEntity, error) {
	return s.configRepo.GetByID(ctx, id)
}

func (s *configService) Create(ctx context.Context, cfg *models.ConfigEntity) error {
	if cfg.Name == "" {
		return fmt.Errorf("config name must not be empty")
	}
	return s.configRepo.Create(ctx, cfg)
}

func (s *configService) Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.ConfigEntity, error) {
	existing, err := s.configRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("config %d not found", id)
	}
	if err := s.configRepo.Update(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update config %d: %w", id, err)
	}
	return s.configRepo.GetByID(ctx, id)
}

// Delete refuses to remove a feature-scoped config while its feature still
// exists; those rows belong to the plugin's declared schema.
func (s *configService) Delete(ctx context.Context, id uint) error {
	cfg, err := s.configRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("config %d not found", id)
	}
	if cfg.FeatureID != 0 {
		feature, err := s.featureRepo.GetByID(ctx, cfg.FeatureID)
		if err != nil {
			return err
		}
		if feature != nil {
			return fmt.Errorf("config %q belongs to existing feature %q and cannot be deleted", cfg.Name, feature.Name)
		}
	}
	return s.configRepo.Delete(ctx, id)
}

// CleanupInvalid drops feature-scoped configs whose feature no longer
// exists and reports how many were removed.
func (s *configService) CleanupInvalid(ctx context.Context) (int, error) {
	configs, err := s.configRepo.Get(ctx, &models.GetConfigParam{})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i := range configs {
		if configs[i].FeatureID == 0 {
			continue
		}
		feature, err := s.featureRepo.GetByID(ctx, configs[i].FeatureID)
		if err != nil {
			return deleted, err
		}
		if feature == nil {
			if err := s.configRepo.Delete(ctx, configs[i].ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	if deleted > 0 {
		s.log.WithField("count", deleted).Info("Cleaned up orphaned configs")
	}
	return deleted, nil
}
