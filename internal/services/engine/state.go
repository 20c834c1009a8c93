package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/pkg/redis"
)

const runStateTTL = 24 * time.Hour

// RedisRunState mirrors each run's latest status into Redis under
// feature:run:<request_id> with a TTL, purely as a fast-poll convenience.
// Every write is best-effort.
type RedisRunState struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewRedisRunState(client *redis.Client, log *logrus.Logger) *RedisRunState {
	return &RedisRunState{client: client, log: log}
}

type runStateSnapshot struct {
	FeatureID uint                   `json:"feature_id"`
	Status    models.ExecutionStatus `json:"status"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (s *RedisRunState) SetState(ctx context.Context, requestID string, featureID uint, status models.ExecutionStatus) {
	if s == nil || s.client == nil {
		return
	}
	payload, err := json.Marshal(runStateSnapshot{
		FeatureID: featureID,
		Status:    status,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return
	}
	key := fmt.Sprintf("feature:run:%s", requestID)
	if err := s.client.Set(ctx, key, payload, runStateTTL).Err(); err != nil {
		s.log.WithError(err).WithField("request_id", requestID).Debug("Failed to cache run state")
	}
}

// GetState returns the cached snapshot, or nil when absent/expired.
func (s *RedisRunState) GetState(ctx context.Context, requestID string) (*models.ExecutionStatus, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, fmt.Sprintf("feature:run:%s", requestID)).Bytes()
	if err != nil {
		return nil, nil
	}
	var snapshot runStateSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot.Status, nil
}
