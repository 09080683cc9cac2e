package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	interfaces "course-enrollment/internal/interfaces/infrastructure"
	"course-enrollment/pkg/logger"
)

var (
	_ interfaces.MessageProducer = (*Queue)(nil)
	_ interfaces.MessageConsumer = (*Queue)(nil)
)

// Queue is the in-process work queue: one buffered channel per partition,
// drained by exactly one worker goroutine each. Messages live only as long
// as the process; a delivery interrupted by Stop is held at the head of its
// partition and resumed by the next Start.
type Queue struct {
	partitions []chan *interfaces.Delivery
	opts       Options
	seq        atomic.Uint64

	heldMu sync.Mutex
	held   []*interfaces.Delivery

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

func NewInMemoryQueue(bufferSize int, opts Options) *Queue {
	opts = opts.withDefaults()
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	partitions := make([]chan *interfaces.Delivery, opts.Partitions)
	for i := range partitions {
		partitions[i] = make(chan *interfaces.Delivery, bufferSize)
	}

	return &Queue{
		partitions: partitions,
		opts:       opts,
		held:       make([]*interfaces.Delivery, opts.Partitions),
	}
}

func (q *Queue) Publish(ctx context.Context, msg *interfaces.OutboundMessage) error {
	p := PartitionFor(msg.GroupKey, len(q.partitions))
	d := &interfaces.Delivery{
		ID:       strconv.FormatUint(q.seq.Add(1), 10),
		GroupKey: msg.GroupKey,
		Body:     msg.Body,
	}

	select {
	case q.partitions[p] <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("enrollment queue partition %d is full", p)
	}
}

func (q *Queue) Close() error {
	return nil
}

func (q *Queue) Start(handler interfaces.DeliveryHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return nil
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	logger.Info("Starting %d in-memory queue workers", len(q.partitions))

	for i := range q.partitions {
		q.wg.Add(1)
		go q.partitionWorker(i, handler)
	}

	q.started = true
	return nil
}

func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return
	}

	logger.Info("Stopping in-memory queue workers...")
	q.cancel()
	q.wg.Wait()
	q.started = false
	logger.Info("In-memory queue workers stopped")
}

// Pending returns the number of buffered messages across partitions.
func (q *Queue) Pending() int {
	n := 0
	for _, ch := range q.partitions {
		n += len(ch)
	}

	q.heldMu.Lock()
	defer q.heldMu.Unlock()
	for _, d := range q.held {
		if d != nil {
			n++
		}
	}
	return n
}

func (q *Queue) partitionWorker(partition int, handler interfaces.DeliveryHandler) {
	defer q.wg.Done()

	logger.Debug("Queue worker for partition %d started", partition)
	stop := q.ctx.Done()

	if d := q.takeHeld(partition); d != nil {
		if !q.process(stop, partition, d, handler) {
			return
		}
	}

	for {
		select {
		case <-stop:
			logger.Debug("Queue worker for partition %d stopped", partition)
			return
		case d := <-q.partitions[partition]:
			if !q.process(stop, partition, d, handler) {
				return
			}
		}
	}
}

// process reports false when the worker must exit because stop fired while d
// was waiting for a retry. d is then held for the next Start.
func (q *Queue) process(stop <-chan struct{}, partition int, d *interfaces.Delivery, handler interfaces.DeliveryHandler) bool {
	if err := deliver(stop, q.opts, d, handler); err != nil {
		d.Attempt++
		q.heldMu.Lock()
		q.held[partition] = d
		q.heldMu.Unlock()
		logger.Warn("Partition %d stopped with message %s unfinished, holding it for restart", partition, d.ID)
		return false
	}
	return true
}

func (q *Queue) takeHeld(partition int) *interfaces.Delivery {
	q.heldMu.Lock()
	defer q.heldMu.Unlock()
	d := q.held[partition]
	q.held[partition] = nil
	return d
}
