package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"
	"course-enrollment/pkg/logger"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour
)

type IdempotencyService struct {
	idempotencyRepo interfaces.IdempotencyRepository
	ttl             time.Duration
}

func NewIdempotencyService(idempotencyRepo interfaces.IdempotencyRepository) *IdempotencyService {
	return &IdempotencyService{
		idempotencyRepo: idempotencyRepo,
		ttl:             DefaultIdempotencyTTL,
	}
}

// CheckDuplicateRequest returns the stored record when key was already used
// by userID with the same payload. Reusing a key with a different payload is
// a Conflict.
func (s *IdempotencyService) CheckDuplicateRequest(ctx context.Context, key string, userID int64, requestData any) (*domain.IdempotencyKey, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	existingKey, err := s.idempotencyRepo.GetByKey(ctx, key)
	if err != nil {
		logger.Error("Failed to check idempotency key: %v", err)
		return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if existingKey == nil {
		return nil, false, nil
	}

	if existingKey.IsExpired() {
		if err := s.idempotencyRepo.Delete(ctx, key); err != nil {
			logger.Warn("Failed to delete expired idempotency key %s: %v", key, err)
		}
		return nil, false, nil
	}

	if existingKey.RequestHash != s.generateRequestHash(userID, requestData) {
		logger.Warn("Idempotency key %s used with different request data", key)
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "idempotency key already used with different request data")
	}

	logger.Info("Duplicate request detected for idempotency key: %s", key)
	return existingKey, true, nil
}

func (s *IdempotencyService) StoreProcessedRequest(ctx context.Context, key string, userID int64, requestData any, responseData any, statusCode int) error {
	if key == "" {
		return nil
	}

	responseJSON, err := json.Marshal(responseData)
	if err != nil {
		logger.Error("Failed to marshal response data for idempotency key %s: %v", key, err)
		return fmt.Errorf("failed to marshal response data: %w", err)
	}

	now := time.Now()
	idempotencyKey := &domain.IdempotencyKey{
		Key:          key,
		UserID:       userID,
		RequestHash:  s.generateRequestHash(userID, requestData),
		ResponseData: string(responseJSON),
		StatusCode:   statusCode,
		ProcessedAt:  now,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}

	if err := s.idempotencyRepo.Create(ctx, idempotencyKey); err != nil {
		logger.Error("Failed to store idempotency key %s: %v", key, err)
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}

	logger.Info("Stored idempotency key: %s", key)
	return nil
}

func (s *IdempotencyService) generateRequestHash(userID int64, requestData any) string {
	data := map[string]any{
		"user_id":      userID,
		"request_data": requestData,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}
