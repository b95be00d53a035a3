package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-sync-api/internal/service"
	"github.com/noah-isme/gradebook-sync-api/pkg/response"
)

type exportService interface {
	ExportGradebook(ctx context.Context, assignmentID, period, format string) (*service.ExportFile, error)
}

// ExportHandler serves gradebook downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
// @Summary Download a period's gradebook
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} binary
// @Router /assignments/{id}/periods/{period}/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	file, err := h.exports.ExportGradebook(c.Request.Context(), c.Param("id"), c.Param("period"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
