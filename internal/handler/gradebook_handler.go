package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	"github.com/noah-isme/gradebook-sync-api/pkg/response"
)

type gradebookService interface {
	View(ctx context.Context, assignmentID, period string) (*dto.GradebookView, error)
	EditGrade(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest) (*dto.GradebookRow, error)
	EditExtraPoints(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest) (*dto.GradebookRow, error)
	DiscardDraft(key models.GradeKey)
	ImportGrades(ctx context.Context, assignmentID, period string, req dto.ImportGradesRequest) (int, error)
	Save(ctx context.Context, assignmentID string) (*dto.SaveResult, error)
	SaveAll(ctx context.Context) ([]dto.SaveResult, error)
	SetTag(ctx context.Context, key models.GradeKey, kind models.TagKind) (*models.Tag, error)
	RemoveTag(ctx context.Context, key models.GradeKey, kind models.TagKind) error
	StudentAverage(ctx context.Context, studentID int64, query dto.StudentAverageQuery) (*dto.StudentAverage, error)
	DeactivateStudent(ctx context.Context, studentID int64) error
}

// GradebookHandler exposes grade entry endpoints.
type GradebookHandler struct {
	gradebook gradebookService
}

// NewGradebookHandler constructs handler.
func NewGradebookHandler(gradebook gradebookService) *GradebookHandler {
	return &GradebookHandler{gradebook: gradebook}
}

// View godoc
// @Summary Gradebook rows for one assignment and period
// @Tags Gradebook
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/grades [get]
func (h *GradebookHandler) View(c *gin.Context) {
	view, err := h.gradebook.View(c.Request.Context(), c.Param("id"), c.Param("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// EditGrade godoc
// @Summary Edit a student's grade
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param studentId path int true "Student ID"
// @Param payload body dto.EditGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/students/{studentId}/grade [put]
func (h *GradebookHandler) EditGrade(c *gin.Context) {
	h.edit(c, h.gradebook.EditGrade)
}

// EditExtraPoints godoc
// @Summary Edit a student's extra points
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param studentId path int true "Student ID"
// @Param payload body dto.EditGradeRequest true "Extra points payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/students/{studentId}/extra [put]
func (h *GradebookHandler) EditExtraPoints(c *gin.Context) {
	h.edit(c, h.gradebook.EditExtraPoints)
}

func (h *GradebookHandler) edit(c *gin.Context, apply func(context.Context, models.GradeKey, dto.EditGradeRequest) (*dto.GradebookRow, error)) {
	key, err := gradeKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EditGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	row, err := apply(c.Request.Context(), key, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row)
}

// DiscardDraft godoc
// @Summary Discard an uncommitted draft grade
// @Tags Gradebook
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param studentId path int true "Student ID"
// @Success 204
// @Router /assignments/{id}/periods/{period}/students/{studentId}/draft [delete]
func (h *GradebookHandler) DiscardDraft(c *gin.Context) {
	key, err := gradeKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.gradebook.DiscardDraft(key)
	response.NoContent(c)
}

// Import godoc
// @Summary Import grades for a period
// @Tags Gradebook
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param payload body dto.ImportGradesRequest true "Grades keyed by student ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/import [post]
func (h *GradebookHandler) Import(c *gin.Context) {
	var req dto.ImportGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	changed, err := h.gradebook.ImportGrades(c.Request.Context(), c.Param("id"), c.Param("period"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"changed": changed})
}

// Save godoc
// @Summary Save pending grades of one assignment now
// @Tags Gradebook
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/save [post]
func (h *GradebookHandler) Save(c *gin.Context) {
	result, err := h.gradebook.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// SaveAll godoc
// @Summary Save every assignment with pending grades
// @Tags Gradebook
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /gradebook/save [post]
func (h *GradebookHandler) SaveAll(c *gin.Context) {
	results, err := h.gradebook.SaveAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, map[string]interface{}{"total": len(results)})
}

// SetTag godoc
// @Summary Tag a student's assignment
// @Tags Gradebook
// @Produce json
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param studentId path int true "Student ID"
// @Param kind path string true "Tag kind" Enums(absent, late, incomplete, retest)
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/periods/{period}/students/{studentId}/tags/{kind} [put]
func (h *GradebookHandler) SetTag(c *gin.Context) {
	key, err := gradeKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tag, err := h.gradebook.SetTag(c.Request.Context(), key, models.TagKind(c.Param("kind")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tag)
}

// RemoveTag godoc
// @Summary Remove a tag
// @Tags Gradebook
// @Param id path string true "Assignment ID"
// @Param period path string true "Class period"
// @Param studentId path int true "Student ID"
// @Param kind path string true "Tag kind"
// @Success 204
// @Router /assignments/{id}/periods/{period}/students/{studentId}/tags/{kind} [delete]
func (h *GradebookHandler) RemoveTag(c *gin.Context) {
	key, err := gradeKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.gradebook.RemoveTag(c.Request.Context(), key, models.TagKind(c.Param("kind"))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentAverage godoc
// @Summary Weighted average of a student
// @Tags Students
// @Produce json
// @Param studentId path int true "Student ID"
// @Param period query string true "Class period"
// @Param gradingPeriod query string false "Grading period label or all"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/average [get]
func (h *GradebookHandler) StudentAverage(c *gin.Context) {
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.StudentAverageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	avg, err := h.gradebook.StudentAverage(c.Request.Context(), studentID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, avg)
}

// DeactivateStudent godoc
// @Summary Deactivate a student
// @Tags Students
// @Param studentId path int true "Student ID"
// @Success 204
// @Router /students/{studentId} [delete]
func (h *GradebookHandler) DeactivateStudent(c *gin.Context) {
	studentID, err := studentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.gradebook.DeactivateStudent(c.Request.Context(), studentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
