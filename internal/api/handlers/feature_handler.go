package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/engine"
	"go-feature-platform/internal/services/features"
	"go-feature-platform/internal/services/registry"
)

const maxUploadBytes = 32 << 20

type FeatureHandler struct {
	featureService features.FeatureService
	engine         *engine.Engine
	synchronizer   *registry.Synchronizer
	logger         *logrus.Logger
}

func NewFeatureHandler(featureService features.FeatureService, eng *engine.Engine, synchronizer *registry.Synchronizer, logger *logrus.Logger) *FeatureHandler {
	return &FeatureHandler{
		featureService: featureService,
		engine:         eng,
		synchronizer:   synchronizer,
		logger:         logger,
	}
}

// HealthCheck handles GET /health
func (h *FeatureHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "feature-platform",
	})
}

// List handles GET /api/v1/features
func (h *FeatureHandler) List(c *gin.Context) {
	customerID, err := queryUint(c, "customer_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid customer_id")
		return
	}
	categoryID, err := queryUint(c, "category_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid category_id")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid limit")
		return
	}
	param := &models.GetFeatureParam{
		CustomerID: customerID,
		CategoryID: categoryID,
		Limit:      limit,
	}
	if name := c.Query("name"); name != "" {
		param.Name = &name
	}

	result, err := h.featureService.Get(c.Request.Context(), param)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list features")
		respondError(c, http.StatusInternalServerError, "failed to list features")
		return
	}
	respondOK(c, result)
}

// Get handles GET /api/v1/features/:id
func (h *FeatureHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	feature, err := h.featureService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("feature_id", id).Error("Failed to get feature")
		respondError(c, http.StatusInternalServerError, "failed to get feature")
		return
	}
	if feature == nil {
		respondError(c, http.StatusNotFound, "feature not found")
		return
	}
	respondOK(c, feature)
}

type updateFeatureRequest struct {
	Description *string  `json:"description"`
	CustomerID  *uint    `json:"customer_id"`
	CategoryID  *uint    `json:"category_id"`
	Tags        []string `json:"tags"`
}

// Update handles PUT /api/v1/features/:id
func (h *FeatureHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req updateFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := map[string]interface{}{}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.CustomerID != nil {
		fields["customer_id"] = *req.CustomerID
	}
	if req.CategoryID != nil {
		fields["category_id"] = *req.CategoryID
	}
	if req.Tags != nil {
		fields["tags"] = req.Tags
	}
	if len(fields) == 0 {
		respondError(c, http.StatusBadRequest, "nothing to update")
		return
	}

	feature, err := h.featureService.Update(c.Request.Context(), id, fields)
	if err != nil {
		h.logger.WithError(err).WithField("feature_id", id).Error("Failed to update feature")
		respondError(c, http.StatusInternalServerError, "failed to update feature")
		return
	}
	if feature == nil {
		respondError(c, http.StatusNotFound, "feature not found")
		return
	}
	respondOK(c, feature)
}

// Delete handles DELETE /api/v1/features/:id
func (h *FeatureHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.featureService.Delete(c.Request.Context(), id); err != nil {
		h.logger.WithError(err).WithField("feature_id", id).Error("Failed to delete feature")
		respondError(c, http.StatusInternalServerError, "failed to delete feature")
		return
	}
	respondOK(c, nil)
}

type executeRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

// Execute handles POST /api/v1/features/:id/execute. Acceptance is
// synchronous; the run itself happens in the background and reports over
// the live channel registered under the given client id.
func (h *FeatureHandler) Execute(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "client_id is required")
		return
	}

	accepted, msg := h.engine.Execute(c.Request.Context(), id, req.ClientID, models.ExecutionKindManual)
	if !accepted {
		respondError(c, http.StatusUnprocessableEntity, msg)
		return
	}
	respond(c, http.StatusAccepted, msg, nil)
}

// Upload handles POST /api/v1/features/upload (multipart form).
func (h *FeatureHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read file")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil || int64(len(content)) > maxUploadBytes {
		respondError(c, http.StatusBadRequest, "failed to read file")
		return
	}

	req := &registry.UploadRequest{
		Filename:    fileHeader.Filename,
		Content:     content,
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
	}
	if raw := c.PostForm("customer_id"); raw != "" {
		id, perr := queryFormUint(raw)
		if perr != nil {
			respondError(c, http.StatusBadRequest, "invalid customer_id")
			return
		}
		req.CustomerID = id
	}
	if raw := c.PostForm("category_id"); raw != "" {
		id, perr := queryFormUint(raw)
		if perr != nil {
			respondError(c, http.StatusBadRequest, "invalid category_id")
			return
		}
		req.CategoryID = id
	}

	ok, msg := h.synchronizer.RegisterUpload(c.Request.Context(), req)
	if !ok {
		respondError(c, http.StatusUnprocessableEntity, msg)
		return
	}
	respond(c, http.StatusCreated, msg, nil)
}
