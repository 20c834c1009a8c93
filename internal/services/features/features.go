package features

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/utils"
)

type FeatureService interface {
	Get(ctx context.Context, param *models.GetFeatureParam) ([]models.FeatureEntity, error)
	GetByID(ctx context.Context, id uint) (*models.FeatureEntity, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.FeatureEntity, error)
	Delete(ctx context.Context, id uint) error
}

type featureService struct {
	cfg         *config.Config
	log         *logrus.Logger
	featureRepo repository.FeatureRepository
	configRepo  repository.ConfigRepository
	uow         repository.UnitOfWork
}

func NewFeatureService(cfg *config.Config, log *logrus.Logger, featureRepo repository.FeatureRepository, configRepo repository.ConfigRepository, uow repository.UnitOfWork) FeatureService {
	return &featureService{
		cfg:         cfg,
		log:         log,
		featureRepo: featureRepo,
		configRepo:  configRepo,
		uow:         uow,
	}
}

func (s *featureService) Get(ctx context.Context, param *models.GetFeatureParam) ([]models.FeatureEntity, error) {
	features, err := s.featureRepo.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to get features: %w", err)
	}
	return features, nil
}

func (s *featureService) GetByID(ctx context.Context, id uint) (*models.FeatureEntity, error) {
	feature, err := s.featureRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get feature %d: %w", id, err)
	}
	return feature, nil
}

func (s *featureService) Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.FeatureEntity, error) {
	feature, err := s.featureRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, fmt.Errorf("feature %d not found", id)
	}
	if err := s.featureRepo.Update(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update feature %d: %w", id, err)
	}
	return s.featureRepo.GetByID(ctx, id)
}

// Delete removes the feature row, its config rows and, best-effort, its
// backing script. A file that cannot be removed never blocks deleting the
// record.
func (s *featureService) Delete(ctx context.Context, id uint) error {
	feature, err := s.featureRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if feature == nil {
		return fmt.Errorf("feature %d not found", id)
	}

	err = s.uow.Do(ctx, func(txOpt utils.DBOption) error {
		if err := s.configRepo.DeleteByFeatureID(ctx, id, txOpt); err != nil {
			return err
		}
		return s.featureRepo.Delete(ctx, id, txOpt)
	})
	if err != nil {
		return fmt.Errorf("failed to delete feature %d: %w", id, err)
	}

	if feature.ScriptPath != "" {
		for _, root := range []string{s.cfg.Plugin.Dir, s.cfg.Plugin.UploadDir} {
			candidate := filepath.Join(root, feature.ScriptPath)
			if _, statErr := os.Stat(candidate); statErr != nil {
				continue
			}
			if rmErr := os.RemoveAll(candidate); rmErr != nil {
				s.log.WithError(rmErr).WithField("path", candidate).Warn("Failed to remove backing script")
			}
			break
		}
	}
	return nil
}
