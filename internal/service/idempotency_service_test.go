package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/infrastructure/repository"
	appErrors "course-enrollment/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyService_ReplaysMatchingRequest(t *testing.T) {
	svc := NewIdempotencyService(repository.NewMemoryIdempotencyRepository())
	ctx := context.Background()
	req := &domain.BatchEnrollmentRequest{RegisterClassGroupIDs: []int64{10, 11}}
	resp := &domain.BatchEnrollmentResponse{BatchID: "1_S55_1", SemesterID: 1}

	_, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", 500, req)
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, svc.StoreProcessedRequest(ctx, "key-1", 500, req, resp, http.StatusAccepted))

	stored, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", 500, req)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, http.StatusAccepted, stored.StatusCode)
	assert.JSONEq(t, `{"batchId":"1_S55_1","semesterId":1,"validClassGroupIds":null}`, stored.ResponseData)

	_, _, err = svc.CheckDuplicateRequest(ctx, "key-1", 500, &domain.BatchEnrollmentRequest{RegisterClassGroupIDs: []int64{12}})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	_, _, err = svc.CheckDuplicateRequest(ctx, "key-1", 501, req)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestIdempotencyService_ExpiredKeyIsForgotten(t *testing.T) {
	repo := repository.NewMemoryIdempotencyRepository()
	svc := NewIdempotencyService(repo)
	svc.ttl = -time.Minute
	ctx := context.Background()

	require.NoError(t, svc.StoreProcessedRequest(ctx, "key-2", 500, "a", "b", http.StatusAccepted))

	_, dup, err := svc.CheckDuplicateRequest(ctx, "key-2", 500, "a")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestIdempotencyService_EmptyKeyIsNoop(t *testing.T) {
	svc := NewIdempotencyService(repository.NewMemoryIdempotencyRepository())

	_, dup, err := svc.CheckDuplicateRequest(context.Background(), "", 500, "a")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NoError(t, svc.StoreProcessedRequest(context.Background(), "", 500, "a", "b", http.StatusAccepted))
}
