package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/pkg/response"
)

type mappingService interface {
	AutoMatch(ctx context.Context, req dto.AutoMatchRequest) (*dto.AutoMatchReport, error)
	ManualMatch(ctx context.Context, req dto.ManualMatchRequest) (*models.StudentMapping, error)
	ListMappings(ctx context.Context, period string) ([]models.StudentMapping, error)
}

// MappingHandler exposes student identity mapping endpoints.
type MappingHandler struct {
	mappings mappingService
}

// NewMappingHandler constructs handler.
func NewMappingHandler(mappings mappingService) *MappingHandler {
	return &MappingHandler{mappings: mappings}
}

// AutoMatch godoc
// @Summary Match a period's roster against a platform course
// @Tags Mappings
// @Accept json
// @Produce json
// @Param payload body dto.AutoMatchRequest true "Matching payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /mappings/auto [post]
func (h *MappingHandler) AutoMatch(c *gin.Context) {
	var req dto.AutoMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	report, err := h.mappings.AutoMatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ManualMatch godoc
// @Summary Pair a student with a platform user
// @Tags Mappings
// @Accept json
// @Produce json
// @Param payload body dto.ManualMatchRequest true "Manual match payload"
// @Success 200 {object} response.Envelope
// @Router /mappings/manual [post]
func (h *MappingHandler) ManualMatch(c *gin.Context) {
	var req dto.ManualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	mapping, err := h.mappings.ManualMatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mapping)
}

// List godoc
// @Summary List a period's mappings
// @Tags Mappings
// @Produce json
// @Param period path string true "Class period"
// @Success 200 {object} response.Envelope
// @Router /mappings/{period} [get]
func (h *MappingHandler) List(c *gin.Context) {
	items, err := h.mappings.ListMappings(c.Request.Context(), c.Param("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}
