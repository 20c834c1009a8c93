package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
)

// Handle is a loaded plugin: its resolved entry file plus the metadata
// probed on first load. Probing runs plugin code, so it happens once per
// path and the handle is reused by every later execution.
type Handle struct {
	Path  string
	Entry string
	Meta  *Meta
}

// Cache is the process-wide plugin registry keyed by plugin path. The
// per-entry sync.Once guards the race where two first-time executions of
// the same plugin both attempt the initial load.
type Cache struct {
	cfg    *config.PluginConfig
	log    *logrus.Logger
	loader MetaLoader

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once   sync.Once
	handle *Handle
	err    error
}

func NewCache(cfg *config.PluginConfig, log *logrus.Logger, loader MetaLoader) *Cache {
	return &Cache{
		cfg:     cfg,
		log:     log,
		loader:  loader,
		entries: make(map[string]*cacheEntry),
	}
}

// GetOrLoad resolves and probes the plugin at path exactly once, returning
// the cached handle on every later call.
func (c *Cache) GetOrLoad(ctx context.Context, path string) (*Handle, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	if !ok {
		entry = &cacheEntry{}
		c.entries[path] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entryFile := ResolveEntry(c.cfg, path)
		if entryFile == "" {
			entry.err = fmt.Errorf("no runnable entry point at %s", path)
			return
		}
		meta := c.loader.Load(ctx, entryFile)
		entry.handle = &Handle{Path: path, Entry: entryFile, Meta: meta}
		c.log.WithFields(logrus.Fields{
			"path":  path,
			"entry": entryFile,
		}).Debug("Plugin loaded into cache")
	})

	return entry.handle, entry.err
}

// Invalidate drops the cached handle so the next execution reloads the
// plugin from disk. Called when an upload replaces a script.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
