package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

func studentIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	return id, nil
}

func gradeKeyParam(c *gin.Context) (models.GradeKey, error) {
	studentID, err := studentIDParam(c)
	if err != nil {
		return models.GradeKey{}, err
	}
	return models.GradeKey{AssignmentID: c.Param("id"), Period: c.Param("period"), StudentID: studentID}, nil
}
