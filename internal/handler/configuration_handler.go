package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clearconf/config-engine/internal/dto"
	"github.com/clearconf/config-engine/internal/models"
	appErrors "github.com/clearconf/config-engine/pkg/errors"
	"github.com/clearconf/config-engine/pkg/middleware/requestid"
	"github.com/clearconf/config-engine/pkg/response"
)

// maxListLimit caps the page size accepted at the boundary.
const maxListLimit = 100

// correlationHeader carries the caller-supplied tracing token.
const correlationHeader = "X-Correlation-ID"

type configurationService interface {
	Create(ctx context.Context, req dto.CreateConfigurationRequest, correlationID string) (*models.Configuration, error)
	Get(ctx context.Context, id string) (*models.Configuration, error)
	List(ctx context.Context, limit, offset int) ([]models.Configuration, int, error)
	Update(ctx context.Context, id string, patch dto.ConfigurationPatch, correlationID string) (*models.Configuration, error)
	Delete(ctx context.Context, id string, correlationID string) error
	GetParentOptions(ctx context.Context, currentID string) ([]models.Configuration, error)
	GetAuditTrail(ctx context.Context, id string, limit int) ([]models.AuditLog, error)
}

// ConfigurationHandler exposes configuration endpoints.
type ConfigurationHandler struct {
	service configurationService
}

// NewConfigurationHandler builds a new handler.
func NewConfigurationHandler(service configurationService) *ConfigurationHandler {
	return &ConfigurationHandler{service: service}
}

// RegisterRoutes mounts the configuration API under the provided group.
func (h *ConfigurationHandler) RegisterRoutes(group *gin.RouterGroup) {
	configs := group.Group("/configurations")
	configs.POST("", h.Create)
	configs.GET("", h.List)
	configs.GET("/parent-options", h.ParentOptionsAll)
	configs.GET("/parent-options/by/:id", h.ParentOptions)
	configs.GET("/by-id/:id", h.Get)
	configs.PUT("/by-id/:id", h.Update)
	configs.DELETE("/by-id/:id", h.Delete)
	configs.GET("/by-id/:id/audit", h.AuditTrail)
}

// Create godoc
// @Summary Create configuration
// @Tags Configurations
// @Accept json
// @Produce json
// @Param payload body dto.CreateConfigurationRequest true "Configuration payload"
// @Success 201 {object} response.Envelope
// @Router /configurations [post]
func (h *ConfigurationHandler) Create(c *gin.Context) {
	var req dto.CreateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid configuration payload"))
		return
	}
	cfg, err := h.service.Create(c.Request.Context(), req, correlationID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromConfiguration(cfg))
}

// List godoc
// @Summary List configurations
// @Tags Configurations
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset from start"
// @Success 200 {object} response.Envelope
// @Router /configurations [get]
func (h *ConfigurationHandler) List(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, total, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.ConfigurationResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.FromConfiguration(&items[i]))
	}
	pagination := &models.Pagination{Limit: limit, Offset: offset, TotalCount: total}
	response.JSON(c, http.StatusOK, dto.ConfigurationListResponse{Items: out, Total: total, Limit: limit, Offset: offset}, pagination)
}

// Get godoc
// @Summary Get configuration by id
// @Tags Configurations
// @Produce json
// @Param id path string true "Configuration id"
// @Success 200 {object} response.Envelope
// @Router /configurations/by-id/{id} [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	cfg, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.FromConfiguration(cfg), nil)
}

// Update godoc
// @Summary Update configuration
// @Tags Configurations
// @Accept json
// @Produce json
// @Param id path string true "Configuration id"
// @Param payload body dto.ConfigurationPatch true "Partial update payload"
// @Success 200 {object} response.Envelope
// @Router /configurations/by-id/{id} [put]
func (h *ConfigurationHandler) Update(c *gin.Context) {
	var patch dto.ConfigurationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	cfg, err := h.service.Update(c.Request.Context(), c.Param("id"), patch, correlationID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.FromConfiguration(cfg), nil)
}

// Delete godoc
// @Summary Delete configuration
// @Tags Configurations
// @Param id path string true "Configuration id"
// @Success 204
// @Router /configurations/by-id/{id} [delete]
func (h *ConfigurationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), correlationID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AuditTrail godoc
// @Summary List the audit trail of a configuration
// @Tags Configurations
// @Produce json
// @Param id path string true "Configuration id"
// @Param limit query int false "Maximum records (max 100, default 50)"
// @Success 200 {object} response.Envelope
// @Router /configurations/by-id/{id}/audit [get]
func (h *ConfigurationHandler) AuditTrail(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		if parsed > maxListLimit {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must not exceed 100"))
			return
		}
		limit = parsed
	}

	logs, err := h.service.GetAuditTrail(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.AuditLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, dto.FromAuditLog(&logs[i]))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// ParentOptionsAll godoc
// @Summary List parent options for a new configuration
// @Tags Configurations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /configurations/parent-options [get]
func (h *ConfigurationHandler) ParentOptionsAll(c *gin.Context) {
	h.parentOptions(c, "")
}

// ParentOptions godoc
// @Summary List parent options for an existing configuration
// @Tags Configurations
// @Produce json
// @Param id path string true "Configuration id"
// @Success 200 {object} response.Envelope
// @Router /configurations/parent-options/by/{id} [get]
func (h *ConfigurationHandler) ParentOptions(c *gin.Context) {
	h.parentOptions(c, c.Param("id"))
}

func (h *ConfigurationHandler) parentOptions(c *gin.Context, currentID string) {
	items, err := h.service.GetParentOptions(c.Request.Context(), currentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.ConfigurationResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.FromConfiguration(&items[i]))
	}
	response.JSON(c, http.StatusOK, dto.ConfigurationListResponse{Items: out, Total: len(out), Limit: len(out), Offset: 0}, nil)
}

func pageParams(c *gin.Context) (int, int, error) {
	limit := 10
	offset := 0

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer")
		}
		if parsed > maxListLimit {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "limit must not exceed 100")
		}
		limit = parsed
	}
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, appErrors.Clone(appErrors.ErrValidation, "offset must be a non-negative integer")
		}
		offset = parsed
	}
	return limit, offset, nil
}

func correlationID(c *gin.Context) string {
	if id := c.GetHeader(correlationHeader); id != "" {
		return id
	}
	return requestid.Value(c)
}
