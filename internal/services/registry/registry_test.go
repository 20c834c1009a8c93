package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-feature-platform/internal/config"
	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/plugins"
	"go-feature-platform/internal/utils"
)

type memFeatureRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.FeatureEntity
}

func newMemFeatureRepo() *memFeatureRepo {
	return &memFeatureRepo{rows: make(map[uint]models.FeatureEntity)}
}

func (r *memFeatureRepo) Get(ctx context.Context, param *models.GetFeatureParam, opts ...utils.DBOption) ([]models.FeatureEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeatureEntity
	for _, row := range r.rows {
		if param.Name != nil && row.Name != *param.Name {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memFeatureRepo) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.FeatureEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		return &row, nil
	}
	return nil, nil
}

func (r *memFeatureRepo) Create(ctx context.Context, feature *models.FeatureEntity, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	feature.ID = r.nextID
	r.rows[feature.ID] = *feature
	return nil
}

func (r *memFeatureRepo) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	return nil
}

func (r *memFeatureRepo) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memFeatureRepo) byName(name string) *models.FeatureEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Name == name {
			copied := row
			return &copied
		}
	}
	return nil
}

func (r *memFeatureRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memConfigRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.ConfigEntity
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{rows: make(map[uint]models.ConfigEntity)}
}

func (r *memConfigRepo) Get(ctx context.Context, param *models.GetConfigParam, opts ...utils.DBOption) ([]models.ConfigEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ConfigEntity
	for _, row := range r.rows {
		if param.FeatureID != nil && row.FeatureID != *param.FeatureID {
			continue
		}
		if param.Name != nil && row.Name != *param.Name {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memConfigRepo) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.ConfigEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		return &row, nil
	}
	return nil, nil
}

func (r *memConfigRepo) Create(ctx context.Context, cfg *models.ConfigEntity, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cfg.ID = r.nextID
	r.rows[cfg.ID] = *cfg
	return nil
}

func (r *memConfigRepo) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	return nil
}

func (r *memConfigRepo) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memConfigRepo) DeleteByFeatureID(ctx context.Context, featureID uint, opts ...utils.DBOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.FeatureID == featureID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *memConfigRepo) forFeature(featureID uint) map[string]models.ConfigEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.ConfigEntity)
	for _, row := range r.rows {
		if row.FeatureID == featureID {
			out[row.Name] = row
		}
	}
	return out
}

type memCustomerRepo struct {
	customers []models.CustomerEntity
}

func (r *memCustomerRepo) GetAll(ctx context.Context, opts ...utils.DBOption) ([]models.CustomerEntity, error) {
	return r.customers, nil
}

func (r *memCustomerRepo) GetByID(ctx context.Context, id uint, opts ...utils.DBOption) (*models.CustomerEntity, error) {
	for i := range r.customers {
		if r.customers[i].ID == id {
			return &r.customers[i], nil
		}
	}
	return nil, nil
}

func (r *memCustomerRepo) GetByName(ctx context.Context, name string, opts ...utils.DBOption) (*models.CustomerEntity, error) {
	for i := range r.customers {
		if r.customers[i].Name == name {
			return &r.customers[i], nil
		}
	}
	return nil, nil
}

func (r *memCustomerRepo) Create(ctx context.Context, customer *models.CustomerEntity, opts ...utils.DBOption) error {
	r.customers = append(r.customers, *customer)
	return nil
}

func (r *memCustomerRepo) Update(ctx context.Context, id uint, fields map[string]interface{}, opts ...utils.DBOption) error {
	return nil
}

func (r *memCustomerRepo) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	return nil
}

type passthroughUow struct{}

func (passthroughUow) Do(ctx context.Context, fn func(txOpt utils.DBOption) error) error {
	return fn(func(db *gorm.DB) *gorm.DB { return db })
}

type mapLoader struct {
	// keyed by "<parent dir base>/<file base>" so tests stay independent of
	// absolute temp paths
	metas map[string]*plugins.Meta
}

func (l *mapLoader) Load(ctx context.Context, entryPath string) *plugins.Meta {
	return l.metas[filepath.Base(filepath.Dir(entryPath))+"/"+filepath.Base(entryPath)]
}

type syncHarness struct {
	sync         *Synchronizer
	cfg          *config.Config
	featureRepo  *memFeatureRepo
	configRepo   *memConfigRepo
	customerRepo *memCustomerRepo
	loader       *mapLoader
}

func newSyncHarness(t *testing.T) *syncHarness {
	t.Helper()
	cfg := &config.Config{Plugin: config.PluginConfig{
		Dir:       t.TempDir(),
		UploadDir: t.TempDir(),
		ScriptExt: ".py",
		EntryFile: "main.py",
	}}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	featureRepo := newMemFeatureRepo()
	configRepo := newMemConfigRepo()
	customerRepo := &memCustomerRepo{customers: []models.CustomerEntity{{ID: 3, Name: "acme"}}}
	loader := &mapLoader{metas: make(map[string]*plugins.Meta)}
	cache := plugins.NewCache(&cfg.Plugin, log, loader)

	s := NewSynchronizer(cfg, log, featureRepo, configRepo, customerRepo, passthroughUow{}, loader, cache)
	return &syncHarness{
		sync:         s,
		cfg:          cfg,
		featureRepo:  featureRepo,
		configRepo:   configRepo,
		customerRepo: customerRepo,
		loader:       loader,
	}
}

func (h *syncHarness) writeScript(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.cfg.Plugin.Dir, name)
	if err := os.WriteFile(path, []byte("print()"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (h *syncHarness) declareMeta(dirName, fileName string, meta *plugins.Meta) {
	h.loader.metas[dirName+"/"+fileName] = meta
}

func TestSyncRegistersNewPlugin(t *testing.T) {
	h := newSyncHarness(t)
	h.writeScript(t, "alpha.py")
	h.declareMeta(filepath.Base(h.cfg.Plugin.Dir), "alpha.py", &plugins.Meta{
		Name:     "alpha",
		Customer: "acme",
		Configs: map[string]plugins.ConfigDecl{
			"interval": {Default: "30"},
			"endpoint": {Default: "", Description: "target URL"},
		},
	})

	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	feature := h.featureRepo.byName("alpha")
	if feature == nil {
		t.Fatal("feature was not registered")
	}
	if feature.ScriptPath != "alpha.py" {
		t.Errorf("script path = %q, want %q", feature.ScriptPath, "alpha.py")
	}
	if feature.CustomerID != 3 {
		t.Errorf("customer id = %d, want 3", feature.CustomerID)
	}

	rows := h.configRepo.forFeature(feature.ID)
	if len(rows) != 2 {
		t.Fatalf("config rows = %d, want 2", len(rows))
	}
	if got := *rows["interval"].DefaultValue; got != "30" {
		t.Errorf("interval default = %q, want %q", got, "30")
	}
	// Description falls back to the key name when undeclared.
	if rows["interval"].Description != "interval" {
		t.Errorf("interval description = %q", rows["interval"].Description)
	}
	if rows["endpoint"].Description != "target URL" {
		t.Errorf("endpoint description = %q", rows["endpoint"].Description)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	h := newSyncHarness(t)
	h.writeScript(t, "alpha.py")
	h.declareMeta(filepath.Base(h.cfg.Plugin.Dir), "alpha.py", &plugins.Meta{
		Name:    "alpha",
		Configs: map[string]plugins.ConfigDecl{"interval": {Default: "30"}},
	})

	for i := 0; i < 3; i++ {
		if err := h.sync.Sync(context.Background()); err != nil {
			t.Fatalf("Sync() pass %d error = %v", i, err)
		}
	}

	if got := h.featureRepo.count(); got != 1 {
		t.Errorf("features = %d after repeated syncs, want 1", got)
	}
	feature := h.featureRepo.byName("alpha")
	if rows := h.configRepo.forFeature(feature.ID); len(rows) != 1 {
		t.Errorf("config rows = %d after repeated syncs, want 1", len(rows))
	}
}

func TestSyncAddsNewConfigKeysAdditively(t *testing.T) {
	h := newSyncHarness(t)
	h.writeScript(t, "alpha.py")
	key := filepath.Base(h.cfg.Plugin.Dir) + "/alpha.py"
	h.loader.metas[key] = &plugins.Meta{
		Name:    "alpha",
		Configs: map[string]plugins.ConfigDecl{"interval": {Default: "30"}},
	}
	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	feature := h.featureRepo.byName("alpha")

	// Simulate a hand-edited override before the plugin declares a new key.
	for id, row := range h.configRepo.rows {
		if row.Name == "interval" {
			row.Value = utils.ToPointer("60")
			h.configRepo.rows[id] = row
		}
	}
	h.loader.metas[key] = &plugins.Meta{
		Name: "alpha",
		Configs: map[string]plugins.ConfigDecl{
			"interval": {Default: "30"},
			"timeout":  {Default: "5"},
		},
	}
	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows := h.configRepo.forFeature(feature.ID)
	if len(rows) != 2 {
		t.Fatalf("config rows = %d, want 2", len(rows))
	}
	if got := *rows["interval"].Value; got != "60" {
		t.Errorf("hand-edited value = %q, resync must not clobber it", got)
	}
	if got := *rows["timeout"].DefaultValue; got != "5" {
		t.Errorf("new key default = %q, want %q", got, "5")
	}
}

func TestSyncRemovesStaleFeature(t *testing.T) {
	h := newSyncHarness(t)
	script := h.writeScript(t, "alpha.py")
	h.declareMeta(filepath.Base(h.cfg.Plugin.Dir), "alpha.py", &plugins.Meta{
		Name:    "alpha",
		Configs: map[string]plugins.ConfigDecl{"interval": {Default: "30"}},
	})
	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	feature := h.featureRepo.byName("alpha")
	if feature == nil {
		t.Fatal("feature was not registered")
	}

	if err := os.Remove(script); err != nil {
		t.Fatal(err)
	}
	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if h.featureRepo.byName("alpha") != nil {
		t.Error("feature survives although its backing script disappeared")
	}
	if rows := h.configRepo.forFeature(feature.ID); len(rows) != 0 {
		t.Errorf("config rows = %d after removal, want 0", len(rows))
	}
}

func TestSyncKeepsFeatureWithoutScriptPath(t *testing.T) {
	h := newSyncHarness(t)
	if err := h.featureRepo.Create(context.Background(), &models.FeatureEntity{Name: "manual-only"}); err != nil {
		t.Fatal(err)
	}

	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if h.featureRepo.byName("manual-only") == nil {
		t.Error("feature without a backing script was deleted by the scan")
	}
}

func TestSyncIgnoresDotPrefixedEntries(t *testing.T) {
	h := newSyncHarness(t)
	staging := filepath.Join(h.cfg.Plugin.UploadDir, ".staging-0000")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staging, "main.py"), []byte("print()"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.declareMeta(".staging-0000", "main.py", &plugins.Meta{Name: "half-extracted"})

	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := h.featureRepo.count(); got != 0 {
		t.Errorf("features = %d, want 0 for an extraction staging dir", got)
	}
}

func TestSyncSkipsPluginsWithoutMeta(t *testing.T) {
	h := newSyncHarness(t)
	h.writeScript(t, "broken.py")
	// loader returns nil for broken.py: probe failed or no metadata

	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := h.featureRepo.count(); got != 0 {
		t.Errorf("features = %d, want 0 for plugin without metadata", got)
	}
}

func TestSyncScansUploadDir(t *testing.T) {
	h := newSyncHarness(t)
	path := filepath.Join(h.cfg.Plugin.UploadDir, "uploaded.py")
	if err := os.WriteFile(path, []byte("print()"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.declareMeta(filepath.Base(h.cfg.Plugin.UploadDir), "uploaded.py", &plugins.Meta{Name: "uploaded"})

	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if h.featureRepo.byName("uploaded") == nil {
		t.Error("plugin in the upload directory was not registered")
	}
}

func TestSyncUnknownCustomerFallsBack(t *testing.T) {
	h := newSyncHarness(t)
	h.writeScript(t, "alpha.py")
	h.declareMeta(filepath.Base(h.cfg.Plugin.Dir), "alpha.py", &plugins.Meta{
		Name:     "alpha",
		Customer: "ghost",
	})

	if err := h.sync.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	feature := h.featureRepo.byName("alpha")
	if feature == nil {
		t.Fatal("feature was not registered")
	}
	if feature.CustomerID != 0 {
		t.Errorf("customer id = %d, want 0 for unknown customer", feature.CustomerID)
	}
}
