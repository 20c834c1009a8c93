package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/services/catalog"
)

type CatalogHandler struct {
	catalogService catalog.CatalogService
	logger         *logrus.Logger
}

func NewCatalogHandler(catalogService catalog.CatalogService, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, logger: logger}
}

func (h *CatalogHandler) ListCustomers(c *gin.Context) {
	customers, err := h.catalogService.GetCustomers(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list customers")
		respondError(c, http.StatusInternalServerError, "failed to list customers")
		return
	}
	respondOK(c, customers)
}

func (h *CatalogHandler) GetCustomer(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	customer, err := h.catalogService.GetCustomerByID(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("customer_id", id).Error("Failed to get customer")
		respondError(c, http.StatusInternalServerError, "failed to get customer")
		return
	}
	if customer == nil {
		respondError(c, http.StatusNotFound, "customer not found")
		return
	}
	respondOK(c, customer)
}

type catalogEntryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *CatalogHandler) CreateCustomer(c *gin.Context) {
	var req catalogEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	customer := &models.CustomerEntity{Name: req.Name, Description: req.Description}
	if err := h.catalogService.CreateCustomer(c.Request.Context(), customer); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respond(c, http.StatusCreated, "success", customer)
}

func (h *CatalogHandler) UpdateCustomer(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	fields, ok := bindCatalogUpdate(c)
	if !ok {
		return
	}
	if err := h.catalogService.UpdateCustomer(c.Request.Context(), id, fields); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, nil)
}

func (h *CatalogHandler) DeleteCustomer(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.catalogService.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, nil)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalogService.GetCategories(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list categories")
		respondError(c, http.StatusInternalServerError, "failed to list categories")
		return
	}
	respondOK(c, categories)
}

func (h *CatalogHandler) GetCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	category, err := h.catalogService.GetCategoryByID(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("category_id", id).Error("Failed to get category")
		respondError(c, http.StatusInternalServerError, "failed to get category")
		return
	}
	if category == nil {
		respondError(c, http.StatusNotFound, "category not found")
		return
	}
	respondOK(c, category)
}

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	category := &models.CategoryEntity{Name: req.Name, Code: req.Code, Description: req.Description}
	if err := h.catalogService.CreateCategory(c.Request.Context(), category); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respond(c, http.StatusCreated, "success", category)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	fields, ok := bindCatalogUpdate(c)
	if !ok {
		return
	}
	if err := h.catalogService.UpdateCategory(c.Request.Context(), id, fields); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, nil)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.catalogService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondOK(c, nil)
}

type catalogUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func bindCatalogUpdate(c *gin.Context) (map[string]interface{}, bool) {
	var req catalogUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if len(fields) == 0 {
		respondError(c, http.StatusBadRequest, "nothing to update")
		return nil, false
	}
	return fields, true
}
