package apperr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxford/event/internal/apperr"
)

func TestNew_HTTPStatus(t *testing.T) {
	err := apperr.New(apperr.RoomNotFound, "no such room")
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.False(t, err.IsTransient())
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperr.Wrap(apperr.DatabaseQueryFailed, "insert failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsTransient())
}

func TestAs_MatchesWrappedAppError(t *testing.T) {
	base := apperr.New(apperr.EditionNotFound, "edition gone")
	wrapped := fmtErrorf(base)

	found, ok := apperr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, apperr.EditionNotFound, found.Kind)
}

func TestToProblemDetails_AppError(t *testing.T) {
	err := apperr.New(apperr.AccessDenied, "not your room")
	problem := apperr.ToProblemDetails(err)
	assert.Equal(t, apperr.AccessDenied, problem.Type)
	assert.Equal(t, http.StatusForbidden, problem.Status)
	assert.Equal(t, "not your room", problem.Detail)
}

func TestToProblemDetails_DefaultsUnknownErrors(t *testing.T) {
	problem := apperr.ToProblemDetails(errors.New("boom"))
	assert.Equal(t, apperr.DatabaseQueryFailed, problem.Type)
	assert.Equal(t, http.StatusInternalServerError, problem.Status)
}

func fmtErrorf(err error) error {
	return errors.Join(err)
}
