package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/configs"
)

type ConfigHandler struct {
	configService configs.ConfigService
	logger        *logrus.Logger
}

func NewConfigHandler(configService configs.ConfigService, logger *logrus.Logger) *ConfigHandler {
	return &ConfigHandler{configService: configService, logger: logger}
}

// List handles GET /api/v1/configs
func (h *ConfigHandler) List(c *gin.Context) {
	featureID, err := queryUint(c, "feature_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid feature_id")
		return
	}
	param := &models.GetConfigParam{FeatureID: featureID}
	if name := c.Query("name"); name != "" {
		param.Name = &name
	}

	result, err := h.configService.Get(c.Request.Context(), param)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list configs")
		respondError(c, http.StatusInternalServerError, "failed to list configs")
		return
	}
	respondOK(c, result)
}

// Get handles GET /api/v1/configs/:id
func (h *ConfigHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	cfg, err := h.configService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("config_id", id).Error("Failed to get config")
		respondError(c, http.StatusInternalServerError, "failed to get config")
		return
	}
	if cfg == nil {
		respondError(c, http.StatusNotFound, "config not found")
		return
	}
	respondOK(c, cfg)
}

type createConfigRequest struct {
	FeatureID    uint    `json:"feature_id"`
	Name         string  `json:"name" binding:"required"`
	Description  string  `json:"description"`
	Value        *string `json:"value"`
	DefaultValue *string `json:"default_value"`
}

// Create handles POST /api/v1/configs
func (h *ConfigHandler) Create(c *gin.Context) {
	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg := &models.ConfigEntity{
		FeatureID:    req.FeatureID,
		Name:         req.Name,
		Description:  req.Description,
		Value:        req.Value,
		DefaultValue: req.DefaultValue,
	}
	if err := h.configService.Create(c.Request.Context(), cfg); err != nil {
		h.logger.WithError(err).Error("Failed to create config")
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respond(c, http.StatusCreated, "success", cfg)
}

type updateConfigRequest struct {
	Description  *string `json:"description"`
	Value        *string `json:"value"`
	DefaultValue *string `json:"default_value"`
}

// Update handles PUT /api/v1/configs/:id
func (h *ConfigHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := map[string]interface{}{}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Value != nil {
		fields["value"] = *req.Value
	}
	if req.DefaultValue != nil {
		fields["default_value"] = *req.DefaultValue
	}
	if len(fields) == 0 {
		respondError(c, http.StatusBadRequest, "nothing to update")
		return
	}

	cfg, err := h.configService.Update(c.Request.Context(), id, fields)
	if err != nil {
		h.logger.WithError(err).WithField("config_id", id).Error("Failed to update config")
		respondError(c, http.StatusInternalServerError, "failed to update config")
		return
	}
	if cfg == nil {
		respondError(c, http.StatusNotFound, "config not found")
		return
	}
	respondOK(c, cfg)
}

// Delete handles DELETE /api/v1/configs/:id
func (h *ConfigHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.configService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, nil)
}

// Cleanup handles POST /api/v1/configs/cleanup; it removes config rows
// whose owning feature no longer exists.
func (h *ConfigHandler) Cleanup(c *gin.Context) {
	removed, err := h.configService.CleanupInvalid(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to clean up configs")
		respondError(c, http.StatusInternalServerError, "failed to clean up configs")
		return
	}
	respondOK(c, gin.H{"removed": removed})
}
