package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	original := Clone(ErrConflict, "already enrolled")
	wrapped := fmt.Errorf("worker: %w", original)

	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "CONFLICT", got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "already enrolled", got.Message)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	got := FromError(errors.New("boom"))
	require.NotNil(t, got)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, "internal server error: boom", got.Error())
	assert.Nil(t, FromError(nil))
}

func TestWithCauseIsRetryable(t *testing.T) {
	cause := errors.New("canceling statement due to lock timeout")
	err := fmt.Errorf("lock class group: %w", WithCause(ErrLockTimeout, cause))

	assert.True(t, IsRetryable(err))
	assert.True(t, HasCode(err, "LOCK_TIMEOUT"))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRetryable(Clone(ErrBadRequest, "full")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCloneDoesNotMutateSentinel(t *testing.T) {
	c := Clonef(ErrNotFound, "class group %d not found", 7)
	assert.Equal(t, "class group 7 not found", c.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}
