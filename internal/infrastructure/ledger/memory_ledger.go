package ledger

import (
	"context"
	"sync"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
)

var _ interfaces.StatusLedger = (*MemoryLedger)(nil)

type MemoryLedger struct {
	mu      sync.RWMutex
	batches map[string]map[string]*domain.StatusLedgerEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{batches: make(map[string]map[string]*domain.StatusLedgerEntry)}
}

func (l *MemoryLedger) PutPending(ctx context.Context, entry *domain.StatusLedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches[entry.BatchID]
	if !ok {
		batch = make(map[string]*domain.StatusLedgerEntry)
		l.batches[entry.BatchID] = batch
	}
	cp := *entry
	batch[entry.ClassGroupID] = &cp
	return nil
}

func (l *MemoryLedger) UpdateOutcome(ctx context.Context, update *domain.StatusLedgerUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches[update.BatchID]
	if !ok {
		batch = make(map[string]*domain.StatusLedgerEntry)
		l.batches[update.BatchID] = batch
	}
	key := domain.ClassGroupKey(update.ClassGroupID)
	if entry, ok := batch[key]; ok {
		entry.Apply(update)
		return nil
	}
	batch[key] = domain.NewEntryFromUpdate(update)
	return nil
}

func (l *MemoryLedger) QueryByBatch(ctx context.Context, batchID string) ([]*domain.StatusLedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	batch := l.batches[batchID]
	entries := make([]*domain.StatusLedgerEntry, 0, len(batch))
	for _, entry := range batch {
		cp := *entry
		entries = append(entries, &cp)
	}
	sortEntries(entries)
	return entries, nil
}
