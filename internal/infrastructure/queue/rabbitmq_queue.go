package queue

import (
	"context"
	"fmt"
	"sync"

	"course-enrollment/internal/config"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	"course-enrollment/pkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const groupKeyHeader = "x-group-key"

var (
	_ interfaces.MessageProducer = (*RabbitMQQueue)(nil)
	_ interfaces.MessageConsumer = (*RabbitMQQueue)(nil)
)

// RabbitMQQueue routes each message through a direct exchange to one durable
// queue per partition. Partition queues are declared single-active-consumer
// and consumed with prefetch 1, which keeps a partition in order across every
// worker process attached to the broker.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	pubMu    sync.Mutex
	exchange string
	prefix   string
	opts     Options

	consumerChs []*amqp.Channel
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	mu          sync.RWMutex
}

func NewRabbitMQQueue(cfg config.RabbitMQConfig, opts Options) (*RabbitMQQueue, error) {
	opts = opts.withDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q := &RabbitMQQueue{
		conn:     conn,
		pubCh:    ch,
		exchange: cfg.Exchange,
		prefix:   cfg.QueuePrefix,
		opts:     opts,
	}

	for p := 0; p < opts.Partitions; p++ {
		name := q.partitionQueue(p)
		if _, err := ch.QueueDeclare(name, true, false, false, false, amqp.Table{
			"x-single-active-consumer": true,
		}); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
		if err := ch.QueueBind(name, name, cfg.Exchange, false, nil); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	return q, nil
}

// partitionQueue is both the queue name and its routing key.
func (q *RabbitMQQueue) partitionQueue(partition int) string {
	return PartitionQueueName(q.prefix, partition)
}

func PartitionQueueName(prefix string, partition int) string {
	if prefix == "" {
		prefix = "enrollment"
	}
	return fmt.Sprintf("%s.partition.%d", prefix, partition)
}

func (q *RabbitMQQueue) Publish(ctx context.Context, msg *interfaces.OutboundMessage) error {
	id := msg.DeduplicationID
	if id == "" {
		id = uuid.NewString()
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	err := q.pubCh.PublishWithContext(ctx, q.exchange, q.partitionQueue(PartitionFor(msg.GroupKey, q.opts.Partitions)), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Headers:      amqp.Table{groupKeyHeader: msg.GroupKey},
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message for %s: %w", msg.GroupKey, err)
	}
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.Stop()
	if q.pubCh != nil {
		_ = q.pubCh.Close()
	}
	if q.conn != nil && !q.conn.IsClosed() {
		return q.conn.Close()
	}
	return nil
}

func (q *RabbitMQQueue) Start(handler interfaces.DeliveryHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return nil
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.consumerChs = q.consumerChs[:0]

	for p := 0; p < q.opts.Partitions; p++ {
		ch, err := q.conn.Channel()
		if err != nil {
			q.cancel()
			return fmt.Errorf("open consumer channel: %w", err)
		}
		if err := ch.Qos(1, 0, false); err != nil {
			_ = ch.Close()
			q.cancel()
			return fmt.Errorf("set prefetch: %w", err)
		}
		deliveries, err := ch.ConsumeWithContext(q.ctx, q.partitionQueue(p), "", false, false, false, false, nil)
		if err != nil {
			_ = ch.Close()
			q.cancel()
			return fmt.Errorf("consume %s: %w", q.partitionQueue(p), err)
		}
		q.consumerChs = append(q.consumerChs, ch)

		q.wg.Add(1)
		go q.partitionWorker(p, deliveries, handler)
	}

	q.started = true
	logger.Info("Started %d RabbitMQ partition consumers on exchange %s", q.opts.Partitions, q.exchange)
	return nil
}

func (q *RabbitMQQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return
	}

	logger.Info("Stopping RabbitMQ consumers...")
	q.cancel()
	q.wg.Wait()
	for _, ch := range q.consumerChs {
		_ = ch.Close()
	}
	q.started = false
	logger.Info("RabbitMQ consumers stopped")
}

func (q *RabbitMQQueue) partitionWorker(partition int, deliveries <-chan amqp.Delivery, handler interfaces.DeliveryHandler) {
	defer q.wg.Done()

	stop := q.ctx.Done()
	for msg := range deliveries {
		groupKey, _ := msg.Headers[groupKeyHeader].(string)
		d := &interfaces.Delivery{
			ID:       msg.MessageId,
			GroupKey: groupKey,
			Body:     msg.Body,
		}

		if err := deliver(stop, q.opts, d, handler); err != nil {
			if nackErr := msg.Nack(false, true); nackErr != nil {
				logger.Error("Failed to requeue message %s: %v", d.ID, nackErr)
			}
			continue
		}
		if err := msg.Ack(false); err != nil {
			logger.Error("Failed to ack message %s: %v", d.ID, err)
		}
	}
	logger.Debug("RabbitMQ consumer for partition %d stopped", partition)
}
