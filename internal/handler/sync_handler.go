package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
	"github.com/noah-isme/gradebook-sync-api/pkg/response"
)

type syncService interface {
	SyncAssignment(ctx context.Context, req dto.SyncRequest) (*dto.SyncResult, error)
	EnqueueSync(ctx context.Context, req dto.SyncRequest) (*dto.SyncJob, error)
	JobStatus(jobID string) (*dto.SyncJob, error)
	PullSubmission(ctx context.Context, assignmentID, period string, studentID int64) (*dto.PulledSubmission, error)
}

// SyncHandler exposes platform sync endpoints.
type SyncHandler struct {
	sync syncService
}

// NewSyncHandler constructs handler.
func NewSyncHandler(sync syncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Sync godoc
// @Summary Push a period's totals to the platform
// @Tags Sync
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param async query bool false "Queue the sync instead of waiting for it"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	req := dto.SyncRequest{AssignmentID: c.Param("id"), Period: c.Param("period")}
	async := false
	if raw := c.Query("async"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "async must be a boolean"))
			return
		}
		async = parsed
	}

	if async {
		job, err := h.sync.EnqueueSync(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, job)
		return
	}

	result, err := h.sync.SyncAssignment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"reauth_required": result.ReauthRequired})
}

// JobStatus godoc
// @Summary Status of a queued sync
// @Tags Sync
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /sync-jobs/{jobId} [get]
func (h *SyncHandler) JobStatus(c *gin.Context) {
	job, err := h.sync.JobStatus(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// PullSubmission godoc
// @Summary Read a student's submission back from the platform
// @Tags Sync
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/students/{studentId}/submission [get]
func (h *SyncHandler) PullSubmission(c *gin.Context) {
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sub, err := h.sync.PullSubmission(c.Request.Context(), c.Param("id"), c.Param("period"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}
