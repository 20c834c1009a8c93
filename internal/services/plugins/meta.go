package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
)

// Meta is the metadata a plugin declares about itself: its display name, the
// owning customer and the configuration keys it consumes. A plugin reports it
// by printing one JSON object to stdout when invoked with --meta.
type Meta struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Customer    string                `json:"customer"`
	Configs     map[string]ConfigDecl `json:"configs"`
}

// ConfigDecl accepts both the long form {"default": ..., "description": ...}
// and the shorthand where the value is just the default string.
type ConfigDecl struct {
	Default     string `json:"default"`
	Description string `json:"description"`
}

func (d *ConfigDecl) UnmarshalJSON(data []byte) error {
	var shorthand string
	if err := json.Unmarshal(data, &shorthand); err == nil {
		d.Default = shorthand
		d.Description = ""
		return nil
	}
	type longForm ConfigDecl
	var decl longForm
	if err := json.Unmarshal(data, &decl); err != nil {
		return err
	}
	*d = ConfigDecl(decl)
	return nil
}

// MetaLoader probes a plugin for its declared metadata.
type MetaLoader interface {
	// Load returns nil (not an error) when the script runs but declares no
	// usable metadata, and also swallows probe failures with a warning:
	// a malformed plugin must never crash a registry scan.
	Load(ctx context.Context, entryPath string) *Meta
}

type metaLoader struct {
	cfg *config.PluginConfig
	log *logrus.Logger
}

func NewMetaLoader(cfg *config.PluginConfig, log *logrus.Logger) MetaLoader {
	return &metaLoader{cfg: cfg, log: log}
}

func (l *metaLoader) Load(ctx context.Context, entryPath string) *Meta {
	probeCtx, cancel := context.WithTimeout(ctx, l.cfg.MetaTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, l.cfg.Interpreter, entryPath, "--meta")
	cmd.Dir = filepath.Dir(entryPath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		l.log.WithError(err).WithField("path", entryPath).Warn("Failed to probe plugin metadata")
		return nil
	}

	raw := bytes.TrimSpace(stdout.Bytes())
	if len(raw) == 0 {
		return nil
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		l.log.WithError(err).WithField("path", entryPath).Warn("Plugin metadata is not valid JSON")
		return nil
	}
	return &meta
}

// ResolveEntry maps a plugin path (script file or directory) to the file the
// interpreter is handed. Returns "" when the path is not a runnable plugin:
// wrong extension, or a directory missing its entry file.
func ResolveEntry(cfg *config.PluginConfig, path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if info.IsDir() {
		entry := filepath.Join(path, cfg.EntryFile)
		if st, err := os.Stat(entry); err == nil && !st.IsDir() {
			return entry
		}
		return ""
	}
	if filepath.Ext(path) != cfg.ScriptExt {
		return ""
	}
	return path
}
