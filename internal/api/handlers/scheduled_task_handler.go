package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/scheduledtasks"
)

type ScheduledTaskHandler struct {
	taskService scheduledtasks.ScheduledTaskService
	logger      *logrus.Logger
}

func NewScheduledTaskHandler(taskService scheduledtasks.ScheduledTaskService, logger *logrus.Logger) *ScheduledTaskHandler {
	return &ScheduledTaskHandler{taskService: taskService, logger: logger}
}

// List handles GET /api/v1/scheduled-tasks
func (h *ScheduledTaskHandler) List(c *gin.Context) {
	featureID, err := queryUint(c, "feature_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid feature_id")
		return
	}
	param := &models.GetScheduledTaskParam{FeatureID: featureID}
	if raw := c.Query("is_active"); raw != "" {
		active := raw == "true"
		param.IsActive = &active
	}

	tasks, err := h.taskService.Get(c.Request.Context(), param)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list scheduled tasks")
		respondError(c, http.StatusInternalServerError, "failed to list scheduled tasks")
		return
	}
	respondOK(c, tasks)
}

// Get handles GET /api/v1/scheduled-tasks/:id
func (h *ScheduledTaskHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, err := h.taskService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("task_id", id).Error("Failed to get scheduled task")
		respondError(c, http.StatusInternalServerError, "failed to get scheduled task")
		return
	}
	if task == nil {
		respondError(c, http.StatusNotFound, "scheduled task not found")
		return
	}
	respondOK(c, task)
}

// Create handles POST /api/v1/scheduled-tasks
func (h *ScheduledTaskHandler) Create(c *gin.Context) {
	var req scheduledtasks.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.taskService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respond(c, http.StatusCreated, "success", task)
}

// Update handles PUT /api/v1/scheduled-tasks/:id
func (h *ScheduledTaskHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req scheduledtasks.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.taskService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, task)
}

// Delete handles DELETE /api/v1/scheduled-tasks/:id
func (h *ScheduledTaskHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.taskService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, nil)
}
