package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/engine"
	"go-feature-platform/internal/services/logs"
)

type LogHandler struct {
	logService logs.LogService
	runState   *engine.RedisRunState
	logger     *logrus.Logger
}

func NewLogHandler(logService logs.LogService, runState *engine.RedisRunState, logger *logrus.Logger) *LogHandler {
	return &LogHandler{logService: logService, runState: runState, logger: logger}
}

// List handles GET /api/v1/logs
func (h *LogHandler) List(c *gin.Context) {
	featureID, err := queryUint(c, "feature_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid feature_id")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid limit")
		return
	}
	param := &models.GetExecutionLogParam{
		FeatureID: featureID,
		Limit:     limit,
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ExecutionStatus(raw)
		param.Status = &status
	}
	if raw := c.Query("kind"); raw != "" {
		kind := models.ExecutionKind(raw)
		param.Kind = &kind
	}
	if raw := c.Query("request_id"); raw != "" {
		param.RequestID = &raw
	}

	headers, err := h.logService.GetHeaders(c.Request.Context(), param)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list execution logs")
		respondError(c, http.StatusInternalServerError, "failed to list execution logs")
		return
	}
	respondOK(c, headers)
}

// Details handles GET /api/v1/logs/:request_id/details; rows come back in
// append order.
func (h *LogHandler) Details(c *gin.Context) {
	requestID := c.Param("request_id")
	details, err := h.logService.GetDetails(c.Request.Context(), requestID)
	if err != nil {
		h.logger.WithError(err).WithField("request_id", requestID).Error("Failed to get execution log details")
		respondError(c, http.StatusInternalServerError, "failed to get execution log details")
		return
	}
	respondOK(c, details)
}

// State handles GET /api/v1/logs/:request_id/state; it reads the cached
// run-state snapshot, falling back to 404 once the snapshot has expired.
func (h *LogHandler) State(c *gin.Context) {
	requestID := c.Param("request_id")
	status, err := h.runState.GetState(c.Request.Context(), requestID)
	if err != nil {
		h.logger.WithError(err).WithField("request_id", requestID).Error("Failed to get run state")
		respondError(c, http.StatusInternalServerError, "failed to get run state")
		return
	}
	if status == nil {
		respondError(c, http.StatusNotFound, "run state not found")
		return
	}
	respondOK(c, gin.H{"request_id": requestID, "status": *status})
}
