package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/services/plugins"
	"go-feature-platform/internal/utils"
)

// Engine orchestrates one feature run: synchronous acceptance checks, then a
// detached background unit of work that loads the plugin, merges config,
// invokes the entry point and reports exactly one terminal state.
type Engine struct {
	cfg         *config.Config
	log         *logrus.Logger
	featureRepo repository.FeatureRepository
	configRepo  repository.ConfigRepository
	logRepo     repository.ExecutionLogRepository
	cache       *plugins.Cache
	runner      plugins.Runner
	router      Broadcaster
	state       RunStateCache
	notifier    Notifier
}

func NewEngine(
	cfg *config.Config,
	log *logrus.Logger,
	featureRepo repository.FeatureRepository,
	configRepo repository.ConfigRepository,
	logRepo repository.ExecutionLogRepository,
	cache *plugins.Cache,
	runner plugins.Runner,
	router Broadcaster,
	state RunStateCache,
	notifier Notifier,
) *Engine {
	return &Engine{
		cfg:         cfg,
		log:         log,
		featureRepo: featureRepo,
		configRepo:  configRepo,
		logRepo:     logRepo,
		cache:       cache,
		runner:      runner,
		router:      router,
		state:       state,
		notifier:    notifier,
	}
}

// Execute is synchronous only up to acceptance: it validates that the
// feature exists and its backing script is present on disk, then hands off
// to a background goroutine and returns immediately. Nothing that happens
// after acceptance ever reaches the caller.
func (e *Engine) Execute(ctx context.Context, featureID uint, clientID string, kind models.ExecutionKind) (bool, string) {
	feature, err := e.featureRepo.GetByID(ctx, featureID)
	if err != nil {
		e.log.WithError(err).WithField("feature_id", featureID).Error("Failed to resolve feature")
		return false, "failed to resolve feature"
	}
	if feature == nil {
		return false, fmt.Sprintf("feature %d not found", featureID)
	}
	if feature.ScriptPath == "" {
		return false, fmt.Sprintf("feature %q has no backing script", feature.Name)
	}
	scriptPath, ok := e.resolveScript(feature.ScriptPath)
	if !ok {
		return false, fmt.Sprintf("script for feature %q not found on disk", feature.Name)
	}
	if plugins.ResolveEntry(&e.cfg.Plugin, scriptPath) == "" {
		return false, fmt.Sprintf("script for feature %q is missing its entry point file", feature.Name)
	}

	utils.SafeGo(func() {
		e.runBackground(feature, scriptPath, clientID, kind)
	})

	if kind == models.ExecutionKindScheduled {
		return true, fmt.Sprintf("scheduled execution of %q accepted", feature.Name)
	}
	return true, fmt.Sprintf("execution of %q accepted", feature.Name)
}

// resolveScript maps the stored relative path onto the scan directory or,
// failing that, the upload directory.
func (e *Engine) resolveScript(scriptPath string) (string, bool) {
	if filepath.IsAbs(scriptPath) {
		if _, err := os.Stat(scriptPath); err == nil {
			return scriptPath, true
		}
		return "", false
	}
	for _, root := range []string{e.cfg.Plugin.Dir, e.cfg.Plugin.UploadDir} {
		candidate := filepath.Join(root, scriptPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func (e *Engine) runBackground(feature *models.FeatureEntity, scriptPath, clientID string, kind models.ExecutionKind) {
	ctx := context.Background()

	rc, err := NewRunContext(ctx, e.log, e.logRepo, e.router, e.state, e.notifier, feature, clientID, kind)
	if err != nil {
		e.log.WithError(err).WithField("feature_id", feature.ID).Error("Failed to start execution context")
		return
	}

	handle, err := e.cache.GetOrLoad(ctx, scriptPath)
	if err != nil {
		rc.Error(ctx, fmt.Sprintf("feature %q: failed to load plugin", feature.Name), nil, err)
		return
	}

	effective, missing, err := e.resolveEffectiveConfig(ctx, feature.ID)
	if err != nil {
		rc.Error(ctx, fmt.Sprintf("feature %q: failed to resolve configuration", feature.Name), nil, err)
		return
	}
	if len(missing) > 0 {
		rc.Log(ctx, fmt.Sprintf("Missing required config values: %s", strings.Join(missing, ", ")), "error", true)
		rc.Fail(ctx, fmt.Sprintf("feature %q has unresolved configuration", feature.Name), map[string][]string{"missing": missing})
		return
	}

	// Debounce so a client that triggered the run has time to finish its
	// live-channel subscription before the first log lines go out.
	if e.cfg.Plugin.StartDelay > 0 {
		time.Sleep(e.cfg.Plugin.StartDelay)
	}

	sink := &contextSink{ctx: ctx, rc: rc}
	result, err := e.runner.Run(ctx, handle, effective, sink)
	if err != nil {
		if errors.Is(err, plugins.ErrNoResult) {
			rc.Error(ctx, fmt.Sprintf("feature %q did not report a result; check its entry point", feature.Name), nil, err)
			return
		}
		rc.Log(ctx, fmt.Sprintf("Plugin execution failed: %s", err.Error()), "error", true)
		rc.Fail(ctx, fmt.Sprintf("feature %q crashed during execution", feature.Name), nil)
		return
	}

	var data interface{}
	if len(result.Data) > 0 {
		data = json.RawMessage(result.Data)
	}
	if result.Status {
		rc.Done(ctx, result.Msg, data)
	} else {
		rc.Fail(ctx, result.Msg, data)
	}
}

// resolveEffectiveConfig merges persisted overrides over declared defaults
// and reports every key that resolves to nothing. Keys are sorted so the
// failure message is stable.
func (e *Engine) resolveEffectiveConfig(ctx context.Context, featureID uint) (map[string]string, []string, error) {
	rows, err := e.configRepo.Get(ctx, &models.GetConfigParam{FeatureID: &featureID})
	if err != nil {
		return nil, nil, err
	}
	effective := make(map[string]string, len(rows))
	var missing []string
	for i := range rows {
		value := rows[i].EffectiveValue()
		if value == nil || *value == "" {
			missing = append(missing, rows[i].Name)
			continue
		}
		effective[rows[i].Name] = *value
	}
	sort.Strings(missing)
	return effective, missing, nil
}

// contextSink adapts the plugin's line stream onto the run context: stdout
// is broadcast, stderr is durably recorded only.
type contextSink struct {
	ctx context.Context
	rc  *RunContext
}

func (s *contextSink) Stdout(line string) {
	s.rc.Log(s.ctx, line, "info", true)
}

func (s *contextSink) Stderr(line string) {
	s.rc.Log(s.ctx, line, "error", false)
}

func toJSON(data interface{}) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(data)
}
