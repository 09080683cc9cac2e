package repository

import (
	"context"
	"sync"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"
)

var _ interfaces.IdempotencyRepository = (*MemoryIdempotencyRepository)(nil)

// MemoryIdempotencyRepository keeps idempotency keys in process. An expired
// key may be overwritten by Create.
type MemoryIdempotencyRepository struct {
	mu   sync.RWMutex
	keys map[string]*domain.IdempotencyKey
}

func NewMemoryIdempotencyRepository() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{keys: make(map[string]*domain.IdempotencyKey)}
}

func (r *MemoryIdempotencyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.keys[key.Key]; ok && !existing.IsExpired() {
		return appErrors.Clonef(appErrors.ErrConflict, "idempotency key %s already stored", key.Key)
	}
	cp := *key
	r.keys[key.Key] = &cp
	return nil
}

func (r *MemoryIdempotencyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	existing, ok := r.keys[key]
	if !ok {
		return nil, nil
	}
	cp := *existing
	return &cp, nil
}

func (r *MemoryIdempotencyRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
	return nil
}
