package interfaces

import (
	"context"
	domain "course-enrollment/internal/domain/enrollment"
)

// StatusLedger stores per-class-group batch progress for client polling.
type StatusLedger interface {
	PutPending(ctx context.Context, entry *domain.StatusLedgerEntry) error
	UpdateOutcome(ctx context.Context, update *domain.StatusLedgerUpdate) error
	QueryByBatch(ctx context.Context, batchID string) ([]*domain.StatusLedgerEntry, error)
}
