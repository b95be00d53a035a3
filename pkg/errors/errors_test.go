package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeAndMatchesSentinel(t *testing.T) {
	err := Clone(ErrPreconditionFailed, "assignment has no platform link")

	assert.Equal(t, "assignment has no platform link", err.Message)
	assert.Equal(t, http.StatusPreconditionFailed, err.Status)
	assert.True(t, errors.Is(err, ErrPreconditionFailed))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "precondition failed", ErrPreconditionFailed.Message)
}

func TestWrapAsPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := WrapAs(ErrPersistenceFailure, cause, "")

	assert.Equal(t, ErrPersistenceFailure.Code, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestFromErrorNormalisesUnknownErrors(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("outer: %w", Clone(ErrMappingMissing, "no mapping"))
	assert.Equal(t, ErrMappingMissing.Code, FromError(wrapped).Code)
	assert.True(t, HasCode(wrapped, ErrMappingMissing.Code))

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
}
