package registry

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/plugins"
	"go-feature-platform/internal/utils"
)

// UploadRequest carries an explicitly uploaded plugin: either a single
// script or a zip archive whose root contains the entry file. Declared
// fields override what the script's metadata probe reports.
type UploadRequest struct {
	Filename    string
	Content     []byte
	Name        string
	Description string
	CustomerID  *uint
	CategoryID  *uint
}

// RegisterUpload persists an uploaded plugin under the upload directory and
// registers it as a feature. Any failure after the file is written rolls
// the file back.
func (s *Synchronizer) RegisterUpload(ctx context.Context, req *UploadRequest) (bool, string) {
	if len(req.Content) == 0 {
		return false, "uploaded file is empty"
	}

	var storedName string
	var err error
	switch {
	case strings.HasSuffix(req.Filename, ".zip"):
		storedName, err = s.extractArchive(req.Filename, req.Content)
	case strings.HasSuffix(req.Filename, s.cfg.Plugin.ScriptExt):
		storedName, err = s.writeScript(req.Filename, req.Content)
	default:
		return false, fmt.Sprintf("unsupported file type, expected %s or .zip", s.cfg.Plugin.ScriptExt)
	}
	if err != nil {
		return false, err.Error()
	}

	storedPath := filepath.Join(s.cfg.Plugin.UploadDir, storedName)
	rollback := func() {
		if err := os.RemoveAll(storedPath); err != nil {
			s.log.WithError(err).WithField("path", storedPath).Warn("Failed to roll back uploaded plugin")
		}
	}

	entryFile := plugins.ResolveEntry(&s.cfg.Plugin, storedPath)
	if entryFile == "" {
		rollback()
		return false, "archive does not contain an entry point file at its root"
	}

	meta := s.loader.Load(ctx, entryFile)
	name := req.Name
	description := req.Description
	var configs map[string]plugins.ConfigDecl
	customerID := uint(0)
	if req.CustomerID != nil {
		customerID = *req.CustomerID
	}
	if meta != nil {
		if name == "" {
			name = meta.Name
		}
		if description == "" {
			description = meta.Description
		}
		configs = meta.Configs
		if req.CustomerID == nil && meta.Customer != "" {
			customer, err := s.customerRepo.GetByName(ctx, meta.Customer)
			if err == nil && customer != nil {
				customerID = customer.ID
			}
		}
	}
	if name == "" {
		rollback()
		return false, "plugin declares no name and none was provided"
	}

	// Duplicate names would make the scan loop treat one of the two
	// scripts as stale and delete it.
	existing, err := s.featureRepo.Get(ctx, &models.GetFeatureParam{Name: &name})
	if err != nil {
		rollback()
		return false, fmt.Sprintf("failed to check for duplicates: %s", err.Error())
	}
	if len(existing) > 0 {
		rollback()
		return false, fmt.Sprintf("a feature named %q is already registered", name)
	}

	categoryID := uint(0)
	if req.CategoryID != nil {
		categoryID = *req.CategoryID
	}

	err = s.uow.Do(ctx, func(txOpt utils.DBOption) error {
		feature := &models.FeatureEntity{
			Name:        name,
			Description: description,
			CustomerID:  customerID,
			CategoryID:  categoryID,
			ScriptPath:  storedName,
		}
		if err := s.featureRepo.Create(ctx, feature, txOpt); err != nil {
			return err
		}
		for cfgName, decl := range configs {
			cfgDescription := decl.Description
			if cfgDescription == "" {
				cfgDescription = cfgName
			}
			row := &models.ConfigEntity{
				Name:         cfgName,
				DefaultValue: utils.ToPointer(decl.Default),
				Description:  cfgDescription,
				FeatureID:    feature.ID,
			}
			if err := s.configRepo.Create(ctx, row, txOpt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		rollback()
		return false, fmt.Sprintf("failed to register uploaded plugin: %s", err.Error())
	}

	s.cache.Invalidate(storedPath)
	return true, fmt.Sprintf("plugin %q registered as %s", name, storedName)
}

// writeScript stores a single script file, deduplicating name collisions
// with a timestamp suffix.
func (s *Synchronizer) writeScript(filename string, content []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.Plugin.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	storedName := filepath.Base(filename)
	target := filepath.Join(s.cfg.Plugin.UploadDir, storedName)
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(storedName)
		storedName = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(storedName, ext), time.Now().Unix(), ext)
		target = filepath.Join(s.cfg.Plugin.UploadDir, storedName)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return storedName, nil
}

// extractArchive unpacks a zip into a directory named after the archive,
// staging through a uuid-named temp dir so a half-written extraction never
// becomes visible to the scan loop.
func (s *Synchronizer) extractArchive(filename string, content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	if err := os.MkdirAll(s.cfg.Plugin.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	staging := filepath.Join(s.cfg.Plugin.UploadDir, ".staging-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(staging) }

	for _, file := range reader.File {
		cleanName := filepath.Clean(file.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			cleanup()
			return "", fmt.Errorf("archive entry %q escapes the extraction root", file.Name)
		}
		target := filepath.Join(staging, cleanName)
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				cleanup()
				return "", err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			cleanup()
			return "", err
		}
		src, err := file.Open()
		if err != nil {
			cleanup()
			return "", err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			src.Close()
			cleanup()
			return "", err
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			dst.Close()
			cleanup()
			return "", err
		}
		src.Close()
		dst.Close()
	}

	storedName := strings.TrimSuffix(filepath.Base(filename), ".zip")
	target := filepath.Join(s.cfg.Plugin.UploadDir, storedName)
	if _, err := os.Stat(target); err == nil {
		storedName = fmt.Sprintf("%s_%d", storedName, time.Now().Unix())
		target = filepath.Join(s.cfg.Plugin.UploadDir, storedName)
	}
	if err := os.Rename(staging, target); err != nil {
		cleanup()
		return "", fmt.Errorf("finalize extraction: %w", err)
	}
	return storedName, nil
}
