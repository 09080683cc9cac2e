package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	appErrors "course-enrollment/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateErrorUniqueViolationIsConflict(t *testing.T) {
	err := fmt.Errorf("insert enrollment: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	got := TranslateError(err)

	assert.True(t, appErrors.HasCode(got, appErrors.ErrConflict.Code))
	assert.False(t, appErrors.IsRetryable(got))
}

func TestTranslateErrorLockTimeoutIsRetryable(t *testing.T) {
	for _, code := range []string{"55P03", "57014"} {
		got := TranslateError(&pgconn.PgError{Code: code})
		assert.True(t, appErrors.IsRetryable(got), code)
		assert.True(t, appErrors.HasCode(got, "LOCK_TIMEOUT"), code)
	}

	got := TranslateError(fmt.Errorf("select: %w", context.DeadlineExceeded))
	assert.True(t, appErrors.IsRetryable(got))
}

func TestTranslateErrorPassesThroughOthers(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, TranslateError(plain))

	typed := appErrors.Clone(appErrors.ErrBadRequest, "class group is full")
	assert.Equal(t, typed, TranslateError(typed))

	other := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, other, TranslateError(other))
	assert.Nil(t, TranslateError(nil))
}
