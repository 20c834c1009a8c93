package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/services/plugins"
	"go-feature-platform/internal/utils"
)

// Synchronizer reconciles the plugins found on disk against the feature
// table: new plugins are registered together with their declared config
// defaults, features whose backing script vanished are removed.
type Synchronizer struct {
	cfg          *config.Config
	log          *logrus.Logger
	featureRepo  repository.FeatureRepository
	configRepo   repository.ConfigRepository
	customerRepo repository.CustomerRepository
	uow          repository.UnitOfWork
	loader       plugins.MetaLoader
	cache        *plugins.Cache
}

func NewSynchronizer(
	cfg *config.Config,
	log *logrus.Logger,
	featureRepo repository.FeatureRepository,
	configRepo repository.ConfigRepository,
	customerRepo repository.CustomerRepository,
	uow repository.UnitOfWork,
	loader plugins.MetaLoader,
	cache *plugins.Cache,
) *Synchronizer {
	return &Synchronizer{
		cfg:          cfg,
		log:          log,
		featureRepo:  featureRepo,
		configRepo:   configRepo,
		customerRepo: customerRepo,
		uow:          uow,
		loader:       loader,
		cache:        cache,
	}
}

// StartScanLoop runs Sync immediately and then on every scan interval until
// the context is cancelled.
func (s *Synchronizer) StartScanLoop(ctx context.Context) {
	utils.SafeGo(func() {
		if err := s.Sync(ctx); err != nil {
			s.log.WithError(err).Error("Initial plugin scan failed")
		}
		ticker := time.NewTicker(s.cfg.Plugin.ScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if stop, _ := utils.ShouldStopCtx(ctx, s.log); stop {
					return
				}
				if err := s.Sync(ctx); err != nil {
					s.log.WithError(err).Error("Plugin scan failed")
				}
			}
		}
	})
}

// Sync performs one reconcile pass. A failure loading one plugin never
// aborts the scan of the others.
func (s *Synchronizer) Sync(ctx context.Context) error {
	features, err := s.featureRepo.Get(ctx, &models.GetFeatureParam{})
	if err != nil {
		return err
	}
	byName := make(map[string]*models.FeatureEntity, len(features))
	unseen := make(map[uint]*models.FeatureEntity, len(features))
	for i := range features {
		byName[features[i].Name] = &features[i]
		// Rows without a backing script are managed outside the scan
		// directories and are never deletion candidates.
		if features[i].ScriptPath != "" {
			unseen[features[i].ID] = &features[i]
		}
	}

	for _, root := range []string{s.cfg.Plugin.Dir, s.cfg.Plugin.UploadDir} {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				s.log.WithError(err).WithField("dir", root).Warn("Cannot read plugin directory")
			}
			continue
		}
		for _, entry := range entries {
			// Dot-prefixed entries are staging dirs mid-extraction.
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			path := filepath.Join(root, entry.Name())
			entryFile := plugins.ResolveEntry(&s.cfg.Plugin, path)
			if entryFile == "" {
				continue
			}
			meta := s.loader.Load(ctx, entryFile)
			if meta == nil || meta.Name == "" {
				continue
			}
			existing, known := byName[meta.Name]
			if !known {
				if err := s.registerPlugin(ctx, meta, entry.Name()); err != nil {
					s.log.WithError(err).WithField("plugin", meta.Name).Error("Failed to register plugin")
				}
				continue
			}
			delete(unseen, existing.ID)
			if err := s.upsertNewConfigKeys(ctx, existing.ID, meta); err != nil {
				s.log.WithError(err).WithField("plugin", meta.Name).Warn("Failed to sync new config keys")
			}
		}
	}

	for id, feature := range unseen {
		s.log.WithFields(logrus.Fields{
			"feature_id": id,
			"name":       feature.Name,
		}).Info("Removing feature whose backing script disappeared")
		if err := s.removeFeature(ctx, id); err != nil {
			s.log.WithError(err).WithField("feature_id", id).Error("Failed to remove stale feature")
		}
	}
	return nil
}

func (s *Synchronizer) registerPlugin(ctx context.Context, meta *plugins.Meta, scriptPath string) error {
	customerID := uint(0)
	if meta.Customer != "" {
		customer, err := s.customerRepo.GetByName(ctx, meta.Customer)
		if err != nil {
			return err
		}
		if customer != nil {
			customerID = customer.ID
		} else {
			s.log.WithField("customer", meta.Customer).Warn("Declared customer not found, using customer_id=0")
		}
	}

	s.log.WithFields(logrus.Fields{
		"plugin":      meta.Name,
		"customer_id": customerID,
	}).Info("Registering new plugin")

	return s.uow.Do(ctx, func(txOpt utils.DBOption) error {
		feature := &models.FeatureEntity{
			Name:        meta.Name,
			Description: meta.Description,
			CustomerID:  customerID,
			ScriptPath:  scriptPath,
		}
		if err := s.featureRepo.Create(ctx, feature, txOpt); err != nil {
			return err
		}
		for name, decl := range meta.Configs {
			description := decl.Description
			if description == "" {
				description = name
			}
			cfg := &models.ConfigEntity{
				Name:         name,
				DefaultValue: utils.ToPointer(decl.Default),
				Description:  description,
				FeatureID:    feature.ID,
			}
			if err := s.configRepo.Create(ctx, cfg, txOpt); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsertNewConfigKeys additively inserts config keys a plugin declares but
// the store does not know yet. Existing rows are left alone so hand-edited
// values are never clobbered.
func (s *Synchronizer) upsertNewConfigKeys(ctx context.Context, featureID uint, meta *plugins.Meta) error {
	existing, err := s.configRepo.Get(ctx, &models.GetConfigParam{FeatureID: &featureID})
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for i := range existing {
		known[existing[i].Name] = struct{}{}
	}
	for name, decl := range meta.Configs {
		if _, ok := known[name]; ok {
			continue
		}
		description := decl.Description
		if description == "" {
			description = name
		}
		cfg := &models.ConfigEntity{
			Name:         name,
			DefaultValue: utils.ToPointer(decl.Default),
			Description:  description,
			FeatureID:    featureID,
		}
		if err := s.configRepo.Create(ctx, cfg); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"feature_id": featureID,
			"config":     name,
		}).Info("Registered newly declared config key")
	}
	return nil
}

func (s *Synchronizer) removeFeature(ctx context.Context, featureID uint) error {
	return s.uow.Do(ctx, func(txOpt utils.DBOption) error {
		if err := s.configRepo.DeleteByFeatureID(ctx, featureID, txOpt); err != nil {
			return err
		}
		return s.featureRepo.Delete(ctx, featureID, txOpt)
	})
}
