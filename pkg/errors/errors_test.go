package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("load exam: %w", Clone(ErrNotFound, "exam not found"))
	appErr := FromError(wrapped)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.Equal(t, "exam not found", appErr.Message)

	plain := FromError(errors.New("db down"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.EqualError(t, plain, "internal server error: db down")
}

func TestCloneAndDetailsDoNotMutatePredefined(t *testing.T) {
	clone := Clone(ErrConfiguration, "grade bands overlap")
	detailed := WithDetails(clone, map[string]string{"field": "grades"})

	assert.Equal(t, "exam configuration is invalid", ErrConfiguration.Message)
	assert.Nil(t, ErrConfiguration.Details)
	assert.Nil(t, clone.Details)
	assert.Equal(t, "grade bands overlap", detailed.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, detailed.Status)
	assert.Equal(t, map[string]string{"field": "grades"}, detailed.Details)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed")
	assert.ErrorIs(t, err, cause)
}
