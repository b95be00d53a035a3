package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-sync-api/internal/dto"
	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

type gradebookServiceMock struct {
	lastKey    models.GradeKey
	lastReq    dto.EditGradeRequest
	lastImport dto.ImportGradesRequest
	lastQuery  dto.StudentAverageQuery
	extra      bool
	discarded  bool
	err        error
}

func (m *gradebookServiceMock) View(ctx context.Context, assignmentID, period string) (*dto.GradebookView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GradebookView{AssignmentID: assignmentID, Period: period, Rows: []dto.GradebookRow{{StudentID: 1, Grade: "90", Total: 90}}}, nil
}

func (m *gradebookServiceMock) EditGrade(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest) (*dto.GradebookRow, error) {
	m.lastKey, m.lastReq = key, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GradebookRow{StudentID: key.StudentID, Grade: req.Value}, nil
}

func (m *gradebookServiceMock) EditExtraPoints(ctx context.Context, key models.GradeKey, req dto.EditGradeRequest) (*dto.GradebookRow, error) {
	m.extra = true
	return m.EditGrade(ctx, key, req)
}

func (m *gradebookServiceMock) DiscardDraft(key models.GradeKey) {
	m.lastKey, m.discarded = key, true
}

func (m *gradebookServiceMock) ImportGrades(ctx context.Context, assignmentID, period string, req dto.ImportGradesRequest) (int, error) {
	m.lastImport = req
	return len(req.Grades), m.err
}

func (m *gradebookServiceMock) Save(ctx context.Context, assignmentID string) (*dto.SaveResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SaveResult{AssignmentID: assignmentID, Upserted: 2}, nil
}

func (m *gradebookServiceMock) SaveAll(ctx context.Context) ([]dto.SaveResult, error) {
	return []dto.SaveResult{{AssignmentID: "a"}, {AssignmentID: "b"}}, m.err
}

func (m *gradebookServiceMock) SetTag(ctx context.Context, key models.GradeKey, kind models.TagKind) (*models.Tag, error) {
	m.lastKey = key
	if m.err != nil {
		return nil, m.err
	}
	return &models.Tag{AssignmentID: key.AssignmentID, StudentID: key.StudentID, Period: key.Period, Kind: kind}, nil
}

func (m *gradebookServiceMock) RemoveTag(ctx context.Context, key models.GradeKey, kind models.TagKind) error {
	m.lastKey = key
	return m.err
}

func (m *gradebookServiceMock) StudentAverage(ctx context.Context, studentID int64, query dto.StudentAverageQuery) (*dto.StudentAverage, error) {
	m.lastQuery = query
	return &dto.StudentAverage{StudentID: studentID, Period: query.Period, Average: 68}, m.err
}

func (m *gradebookServiceMock) DeactivateStudent(ctx context.Context, studentID int64) error {
	return m.err
}

func TestGradebookHandlerEditGrade(t *testing.T) {
	mock := &gradebookServiceMock{}
	h := NewGradebookHandler(mock)

	c, w := newGinContext(http.MethodPut, "/", []byte(`{"value":"95","commit":false}`))
	c.Params = gradeParams("quiz", "2", "7")
	h.EditGrade(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GradeKey{AssignmentID: "quiz", Period: "2", StudentID: 7}, mock.lastKey)
	assert.Equal(t, "95", mock.lastReq.Value)
	require.NotNil(t, mock.lastReq.Commit)
	assert.False(t, *mock.lastReq.Commit)
	assert.False(t, mock.extra)

	var row dto.GradebookRow
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &row))
	assert.Equal(t, "95", row.Grade)
}

func TestGradebookHandlerEditExtraPoints(t *testing.T) {
	mock := &gradebookServiceMock{}
	h := NewGradebookHandler(mock)

	c, w := newGinContext(http.MethodPut, "/", []byte(`{"value":"5"}`))
	c.Params = gradeParams("quiz", "2", "7")
	h.EditExtraPoints(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.extra)
	assert.Nil(t, mock.lastReq.Commit)
}

func TestGradebookHandlerRejectsBadStudentID(t *testing.T) {
	h := NewGradebookHandler(&gradebookServiceMock{})

	c, w := newGinContext(http.MethodPut, "/", []byte(`{"value":"95"}`))
	c.Params = gradeParams("quiz", "2", "abc")
	h.EditGrade(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestGradebookHandlerMapsServiceErrors(t *testing.T) {
	h := NewGradebookHandler(&gradebookServiceMock{err: appErrors.Clone(appErrors.ErrPersistenceFailure, "")})

	c, w := newGinContext(http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "quiz"}}
	h.Save(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "PERSISTENCE_FAILURE", decodeEnvelope(t, w).Error.Code)
}

func TestGradebookHandlerImport(t *testing.T) {
	mock := &gradebookServiceMock{}
	h := NewGradebookHandler(mock)

	c, w := newGinContext(http.MethodPost, "/", []byte(`{"grades":{"1":"80","2":"0"}}`))
	c.Params = gin.Params{{Key: "id", Value: "quiz"}, {Key: "period", Value: "2"}}
	h.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[int64]string{1: "80", 2: "0"}, mock.lastImport.Grades)
	assert.JSONEq(t, `{"changed":2}`, string(decodeEnvelope(t, w).Data))
}

func TestGradebookHandlerTagsAndDraft(t *testing.T) {
	mock := &gradebookServiceMock{}
	h := NewGradebookHandler(mock)

	c, w := newGinContext(http.MethodPut, "/", nil)
	c.Params = append(gradeParams("exam", "3", "4"), gin.Param{Key: "kind", Value: "retest"})
	h.SetTag(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodDelete, "/", nil)
	c.Params = append(gradeParams("exam", "3", "4"), gin.Param{Key: "kind", Value: "retest"})
	h.RemoveTag(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	c, w = newGinContext(http.MethodDelete, "/", nil)
	c.Params = gradeParams("exam", "3", "4")
	h.DiscardDraft(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mock.discarded)
}

func TestGradebookHandlerStudentAverage(t *testing.T) {
	mock := &gradebookServiceMock{}
	h := NewGradebookHandler(mock)

	c, w := newGinContext(http.MethodGet, "/students/1/average?period=2&gradingPeriod=all", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "1"}}
	h.StudentAverage(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.StudentAverageQuery{Period: "2", GradingPeriod: "all"}, mock.lastQuery)
}

func TestGradebookHandlerSaveAll(t *testing.T) {
	h := NewGradebookHandler(&gradebookServiceMock{})

	c, w := newGinContext(http.MethodPost, "/gradebook/save", nil)
	h.SaveAll(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeEnvelope(t, w).Meta["total"])
}
