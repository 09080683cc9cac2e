package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
)

var _ interfaces.StatusLedger = (*RedisLedger)(nil)

// RedisLedger keeps one hash per batch, field = class group id, value = the
// JSON entry. The hash expires ttl after its last write.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLedger(client redis.UniversalClient, ttl time.Duration) *RedisLedger {
	return &RedisLedger{
		client: client,
		prefix: "enrollment:batch:",
		ttl:    ttl,
	}
}

func (l *RedisLedger) key(batchID string) string {
	return l.prefix + batchID
}

func (l *RedisLedger) write(ctx context.Context, entry *domain.StatusLedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal status ledger entry: %w", err)
	}

	key := l.key(entry.BatchID)
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, entry.ClassGroupID, data)
		if l.ttl > 0 {
			pipe.Expire(ctx, key, l.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write status ledger entry %s/%s: %w", entry.BatchID, entry.ClassGroupID, err)
	}
	return nil
}

func (l *RedisLedger) PutPending(ctx context.Context, entry *domain.StatusLedgerEntry) error {
	return l.write(ctx, entry)
}

func (l *RedisLedger) UpdateOutcome(ctx context.Context, update *domain.StatusLedgerUpdate) error {
	field := domain.ClassGroupKey(update.ClassGroupID)

	raw, err := l.client.HGet(ctx, l.key(update.BatchID), field).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read status ledger entry %s/%s: %w", update.BatchID, field, err)
	}

	if err == redis.Nil {
		return l.write(ctx, domain.NewEntryFromUpdate(update))
	}

	var entry domain.StatusLedgerEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return l.write(ctx, domain.NewEntryFromUpdate(update))
	}
	entry.Apply(update)
	return l.write(ctx, &entry)
}

func (l *RedisLedger) QueryByBatch(ctx context.Context, batchID string) ([]*domain.StatusLedgerEntry, error) {
	values, err := l.client.HGetAll(ctx, l.key(batchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query status ledger for batch %s: %w", batchID, err)
	}

	entries := make([]*domain.StatusLedgerEntry, 0, len(values))
	for field, raw := range values {
		var entry domain.StatusLedgerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status ledger entry %s/%s: %w", batchID, field, err)
		}
		entries = append(entries, &entry)
	}
	sortEntries(entries)
	return entries, nil
}
