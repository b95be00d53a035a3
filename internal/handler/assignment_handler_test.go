package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

type assignmentServiceMock struct {
	created *dto.CreateAssignmentRequest
	query   dto.AssignmentQuery
	deleted string
}

func (m *assignmentServiceMock) Create(ctx context.Context, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	m.created = &req
	return &models.Assignment{ID: "a-1", Name: req.Name, GradingPeriod: "2SW"}, nil
}

func (m *assignmentServiceMock) Get(ctx context.Context, id string) (*models.Assignment, error) {
	if id != "a-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return &models.Assignment{ID: id}, nil
}

func (m *assignmentServiceMock) List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error) {
	m.query = query
	return []models.Assignment{{ID: "a-1"}}, nil
}

func (m *assignmentServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateAssignmentStatusRequest) (*models.Assignment, error) {
	return &models.Assignment{ID: id, Status: models.AssignmentStatus(req.Status)}, nil
}

func (m *assignmentServiceMock) Link(ctx context.Context, id string, req dto.LinkAssignmentRequest) (*models.Assignment, error) {
	return &models.Assignment{ID: id, ExternalCourseID: &req.CourseID, ExternalCourseWorkID: &req.CourseWorkID}, nil
}

func (m *assignmentServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func TestAssignmentHandlerCreate(t *testing.T) {
	mock := &assignmentServiceMock{}
	h := NewAssignmentHandler(mock)

	c, w := newGinContext(http.MethodPost, "/assignments", []byte(`{"name":"Quiz","date":"2024-09-23T00:00:00Z","kind":"Daily","subject":"Math","periods":["2"]}`))
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.created)
	assert.Equal(t, []string{"2"}, mock.created.Periods)
	assert.Equal(t, 2024, mock.created.Date.Year())
}

func TestAssignmentHandlerCreateRejectsMalformedJSON(t *testing.T) {
	mock := &assignmentServiceMock{}
	h := NewAssignmentHandler(mock)

	c, w := newGinContext(http.MethodPost, "/assignments", []byte(`{"name":`))
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.created)
}

func TestAssignmentHandlerListAndGet(t *testing.T) {
	mock := &assignmentServiceMock{}
	h := NewAssignmentHandler(mock)

	c, w := newGinContext(http.MethodGet, "/assignments?gradingPeriod=2SW&period=3", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.AssignmentQuery{Period: "3", GradingPeriod: "2SW"}, mock.query)
	assert.EqualValues(t, 1, decodeEnvelope(t, w).Meta["total"])

	c, w = newGinContext(http.MethodGet, "/assignments/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignmentHandlerDelete(t *testing.T) {
	mock := &assignmentServiceMock{}
	h := NewAssignmentHandler(mock)

	c, w := newGinContext(http.MethodDelete, "/assignments/a-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "a-1"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "a-1", mock.deleted)
}
