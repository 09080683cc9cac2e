package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	interfaces "course-enrollment/internal/interfaces/infrastructure"
	"course-enrollment/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const DefaultDeduplicationWindow = 5 * time.Minute

var (
	_ interfaces.MessageProducer = (*RedisQueue)(nil)
	_ interfaces.MessageConsumer = (*RedisQueue)(nil)
)

// redisMessage is the JSON stored in the partition lists.
type redisMessage struct {
	ID         string    `json:"id"`
	GroupKey   string    `json:"group_key"`
	Body       []byte    `json:"body"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue keeps one list per partition. Producers LPUSH, the partition
// worker BRPOPLPUSHes into a processing list and LREMs once handled, so a
// crash leaves the message in the processing list for recovery on restart.
type RedisQueue struct {
	client redis.UniversalClient
	prefix string
	opts   Options

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

func NewRedisQueue(client redis.UniversalClient, prefix string, opts Options) *RedisQueue {
	if prefix == "" {
		prefix = "queue:enrollment"
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
		opts:   opts.withDefaults(),
	}
}

func (rq *RedisQueue) pendingKey(partition int) string {
	return fmt.Sprintf("%s:%d", rq.prefix, partition)
}

func (rq *RedisQueue) processingKey(partition int) string {
	return fmt.Sprintf("%s:%d:processing", rq.prefix, partition)
}

func (rq *RedisQueue) dedupKey(id string) string {
	return fmt.Sprintf("%s:dedup:%s", rq.prefix, id)
}

// Publish enqueues msg. A DeduplicationID seen within the last five minutes
// is accepted and dropped.
func (rq *RedisQueue) Publish(ctx context.Context, msg *interfaces.OutboundMessage) error {
	id := msg.DeduplicationID
	if id == "" {
		id = uuid.NewString()
	} else {
		fresh, err := rq.client.SetNX(ctx, rq.dedupKey(id), 1, DefaultDeduplicationWindow).Result()
		if err != nil {
			return fmt.Errorf("failed to check deduplication id %s: %w", id, err)
		}
		if !fresh {
			logger.Debug("Skipping duplicate message %s", id)
			return nil
		}
	}

	data, err := json.Marshal(redisMessage{
		ID:         id,
		GroupKey:   msg.GroupKey,
		Body:       msg.Body,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	partition := PartitionFor(msg.GroupKey, rq.opts.Partitions)
	if err := rq.client.LPush(ctx, rq.pendingKey(partition), data).Err(); err != nil {
		if msg.DeduplicationID != "" {
			rq.client.Del(ctx, rq.dedupKey(id))
		}
		return fmt.Errorf("failed to enqueue message for %s: %w", msg.GroupKey, err)
	}

	logger.Debug("Enqueued message %s for %s on partition %d", id, msg.GroupKey, partition)
	return nil
}

func (rq *RedisQueue) Close() error {
	return nil
}

func (rq *RedisQueue) Start(handler interfaces.DeliveryHandler) error {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if rq.started {
		return nil
	}

	for p := 0; p < rq.opts.Partitions; p++ {
		if err := rq.recover(context.Background(), p); err != nil {
			return err
		}
	}

	rq.ctx, rq.cancel = context.WithCancel(context.Background())
	logger.Info("Starting %d Redis queue workers", rq.opts.Partitions)

	for p := 0; p < rq.opts.Partitions; p++ {
		rq.wg.Add(1)
		go rq.partitionWorker(p, handler)
	}

	rq.started = true
	return nil
}

func (rq *RedisQueue) Stop() {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if !rq.started {
		return
	}

	logger.Info("Stopping Redis queue workers...")
	rq.cancel()
	rq.wg.Wait()
	rq.started = false
	logger.Info("Redis queue workers stopped")
}

// recover moves messages left in the processing list back to the consuming
// end of the pending list so they are handled before anything newer.
func (rq *RedisQueue) recover(ctx context.Context, partition int) error {
	recovered := 0
	for {
		err := rq.client.LMove(ctx, rq.processingKey(partition), rq.pendingKey(partition), "RIGHT", "RIGHT").Err()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to recover processing list for partition %d: %w", partition, err)
		}
		recovered++
	}
	if recovered > 0 {
		logger.Warn("Recovered %d unfinished messages on partition %d", recovered, partition)
	}
	return nil
}

func (rq *RedisQueue) dequeue(partition int) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDequeueTimeout+time.Second)
	defer cancel()

	raw, err := rq.client.BRPopLPush(ctx, rq.pendingKey(partition), rq.processingKey(partition), DefaultDequeueTimeout).Result()
	if err != nil {
		if err == redis.Nil || err == context.DeadlineExceeded {
			return "", nil
		}
		return "", fmt.Errorf("failed to dequeue from partition %d: %w", partition, err)
	}
	return raw, nil
}

func (rq *RedisQueue) partitionWorker(partition int, handler interfaces.DeliveryHandler) {
	defer rq.wg.Done()

	logger.Debug("Redis queue worker for partition %d started", partition)
	stop := rq.ctx.Done()

	for {
		select {
		case <-stop:
			logger.Debug("Redis queue worker for partition %d stopped", partition)
			return
		default:
		}

		raw, err := rq.dequeue(partition)
		if err != nil {
			logger.Error("Redis queue worker %d error: %v", partition, err)
			time.Sleep(WorkerSleepDuration)
			continue
		}
		if raw == "" {
			continue
		}

		var msg redisMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			logger.Error("Dropping malformed message on partition %d: %v", partition, err)
			rq.ack(partition, raw)
			continue
		}

		d := &interfaces.Delivery{ID: msg.ID, GroupKey: msg.GroupKey, Body: msg.Body}
		if err := deliver(stop, rq.opts, d, handler); err != nil {
			logger.Warn("Partition %d stopped with message %s unfinished", partition, d.ID)
			return
		}
		rq.ack(partition, raw)
	}
}

func (rq *RedisQueue) ack(partition int, raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDequeueTimeout)
	defer cancel()

	if err := rq.client.LRem(ctx, rq.processingKey(partition), 1, raw).Err(); err != nil {
		logger.Error("Failed to remove handled message from partition %d: %v", partition, err)
	}
}
