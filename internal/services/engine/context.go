package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/utils"
)

// Broadcaster routes live events to the connection registered under a
// client id. Delivery is best-effort; the durable detail log is the system
// of record.
type Broadcaster interface {
	Route(clientID string, event string, data interface{}) bool
}

// RunStateCache keeps a short-lived status snapshot per request id so
// dashboards can poll run state without touching the primary store.
// Implementations must tolerate being nil-received or failing silently.
type RunStateCache interface {
	SetState(ctx context.Context, requestID string, featureID uint, status models.ExecutionStatus)
}

// Notifier pings an operator channel about runs that ended badly.
type Notifier interface {
	RunFailed(ctx context.Context, featureName, requestID, msg string)
}

type doneEvent struct {
	ClientID string      `json:"client_id"`
	Status   string      `json:"status"`
	Msg      string      `json:"msg"`
	Data     interface{} `json:"data"`
}

// RunContext correlates one invocation's durable log, live broadcast and
// completion state. Constructing it records the run as RUNNING; exactly one
// of Done, Fail, Error or Terminate finalizes it.
type RunContext struct {
	log      *logrus.Logger
	store    repository.ExecutionLogRepository
	router   Broadcaster
	state    RunStateCache
	notifier Notifier

	feature   *models.FeatureEntity
	clientID  string
	requestID string
	headerID  uint

	finalizeOnce sync.Once
}

// requestIDMu serializes the max-id read against the header insert so two
// concurrent runs can never mint the same request id.
var requestIDMu sync.Mutex

// NewRunContext generates the request id, inserts the RUNNING header row and
// announces the run on the live channel.
func NewRunContext(
	ctx context.Context,
	log *logrus.Logger,
	store repository.ExecutionLogRepository,
	router Broadcaster,
	state RunStateCache,
	notifier Notifier,
	feature *models.FeatureEntity,
	clientID string,
	kind models.ExecutionKind,
) (*RunContext, error) {
	requestIDMu.Lock()
	maxID, err := store.MaxID(ctx)
	if err != nil {
		requestIDMu.Unlock()
		return nil, fmt.Errorf("derive request sequence: %w", err)
	}
	now := time.Now()
	requestID := utils.BuildRequestID(now, maxID+1)

	header := &models.ExecutionLogEntity{
		FeatureID: feature.ID,
		RequestID: requestID,
		StartTime: now,
		Status:    models.ExecutionStatusRunning,
		Kind:      kind,
		ClientID:  clientID,
	}
	err = store.CreateHeader(ctx, header)
	requestIDMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create execution header: %w", err)
	}

	rc := &RunContext{
		log:       log,
		store:     store,
		router:    router,
		state:     state,
		notifier:  notifier,
		feature:   feature,
		clientID:  clientID,
		requestID: requestID,
		headerID:  header.ID,
	}
	if rc.state != nil {
		rc.state.SetState(ctx, requestID, feature.ID, models.ExecutionStatusRunning)
	}
	rc.Log(ctx, fmt.Sprintf("Run initialized, request id %s", requestID), "info", true)
	return rc, nil
}

func (rc *RunContext) RequestID() string {
	return rc.requestID
}

// Log durably appends one detail row and, when broadcast is set, pushes the
// line over the live channel. A failed append is logged and swallowed: one
// lost line must not abort a running plugin.
func (rc *RunContext) Log(ctx context.Context, message, level string, broadcast bool) {
	detail := &models.ExecutionLogDetailEntity{
		LogID:     rc.headerID,
		Level:     normalizeLevel(level),
		Message:   message,
		RequestID: rc.requestID,
	}
	if err := rc.store.AppendDetail(ctx, detail); err != nil {
		rc.log.WithError(err).WithField("request_id", rc.requestID).Error("Failed to append execution detail")
	}
	if broadcast {
		rc.router.Route(rc.clientID, "log", map[string]string{"message": message})
	}
}

// Done finalizes the run as SUCCESS.
func (rc *RunContext) Done(ctx context.Context, msg string, data interface{}) {
	rc.finalize(ctx, models.ExecutionStatusSuccess, "success", msg, data)
}

// Fail finalizes the run as FAILURE: the plugin ran and reported failure,
// or raised mid-flight.
func (rc *RunContext) Fail(ctx context.Context, msg string, data interface{}) {
	rc.finalize(ctx, models.ExecutionStatusFailure, "error", msg, data)
	if rc.notifier != nil {
		rc.notifier.RunFailed(ctx, rc.feature.Name, rc.requestID, msg)
	}
}

// Error finalizes the run as ERROR: the plugin could not even be started
// (load failure, broken result contract). The diagnostic detail is durably
// recorded but not pushed verbatim to the UI.
func (rc *RunContext) Error(ctx context.Context, msg string, data interface{}, cause error) {
	rc.Log(ctx, fmt.Sprintf("Error: %s", msg), "error", true)
	if cause != nil {
		rc.Log(ctx, fmt.Sprintf("Cause: %s", cause.Error()), "error", false)
		rc.Log(ctx, fmt.Sprintf("Stack: %s", debug.Stack()), "error", false)
	}
	rc.finalize(ctx, models.ExecutionStatusError, "error", msg, data)
	if rc.notifier != nil {
		rc.notifier.RunFailed(ctx, rc.feature.Name, rc.requestID, msg)
	}
}

// Terminate finalizes the run as TERMINATED. Nothing calls it automatically
// yet; it is the hook for cooperative cancellation.
func (rc *RunContext) Terminate(ctx context.Context, reason string) {
	rc.finalize(ctx, models.ExecutionStatusTerminated, "terminated", reason, nil)
}

func (rc *RunContext) finalize(ctx context.Context, status models.ExecutionStatus, wireStatus, msg string, data interface{}) {
	rc.finalizeOnce.Do(func() {
		var result datatypes.JSON
		if data != nil {
			if raw, err := toJSON(data); err == nil {
				result = datatypes.JSON(raw)
			}
		}
		if err := rc.store.Finalize(ctx, rc.headerID, status, time.Now(), result); err != nil {
			rc.log.WithError(err).WithFields(logrus.Fields{
				"request_id": rc.requestID,
				"status":     status,
			}).Error("Failed to finalize execution header")
		}
		if rc.state != nil {
			rc.state.SetState(ctx, rc.requestID, rc.feature.ID, status)
		}
		rc.router.Route(rc.clientID, "feature_done", doneEvent{
			ClientID: rc.clientID,
			Status:   wireStatus,
			Msg:      msg,
			Data:     data,
		})
	})
}

func normalizeLevel(level string) string {
	switch level {
	case "debug", "DEBUG":
		return "DEBUG"
	case "warn", "warning", "WARN":
		return "WARN"
	case "error", "ERROR":
		return "ERROR"
	default:
		return "INFO"
	}
}
