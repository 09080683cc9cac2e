package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"course-enrollment/internal/config"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	"course-enrollment/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var (
	_ interfaces.MessageProducer = (*SQSQueue)(nil)
	_ interfaces.MessageConsumer = (*SQSQueue)(nil)
)

// SQSQueue publishes to and long-polls a FIFO queue. SQS itself keeps each
// message group ordered and never hands out a group that has a message in
// flight, so several pollers can run side by side. Retries are driven by the
// visibility timeout and counted with ApproximateReceiveCount.
type SQSQueue struct {
	client            SQSAPI
	queueURL          string
	waitTimeSeconds   int32
	maxMessages       int32
	visibilityTimeout int32
	opts              Options

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex
}

func NewSQSQueue(client SQSAPI, cfg config.SQSConfig, opts Options) (*SQSQueue, error) {
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs queue url is required")
	}
	q := &SQSQueue{
		client:            client,
		queueURL:          cfg.QueueURL,
		waitTimeSeconds:   cfg.WaitTimeSeconds,
		maxMessages:       cfg.MaxMessages,
		visibilityTimeout: cfg.VisibilityTimeoutSeconds,
		opts:              opts.withDefaults(),
	}
	if q.waitTimeSeconds <= 0 || q.waitTimeSeconds > 20 {
		q.waitTimeSeconds = 20
	}
	if q.maxMessages <= 0 || q.maxMessages > 10 {
		q.maxMessages = 10
	}
	return q, nil
}

func (q *SQSQueue) Publish(ctx context.Context, msg *interfaces.OutboundMessage) error {
	input := &sqs.SendMessageInput{
		QueueUrl:       aws.String(q.queueURL),
		MessageBody:    aws.String(string(msg.Body)),
		MessageGroupId: aws.String(msg.GroupKey),
	}
	if msg.DeduplicationID != "" {
		input.MessageDeduplicationId = aws.String(msg.DeduplicationID)
	}

	out, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send message for %s: %w", msg.GroupKey, err)
	}

	logger.Debug("Sent message %s to group %s", aws.ToString(out.MessageId), msg.GroupKey)
	return nil
}

func (q *SQSQueue) Close() error {
	return nil
}

func (q *SQSQueue) Start(handler interfaces.DeliveryHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return nil
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	logger.Info("Starting %d SQS pollers on %s", q.opts.Partitions, q.queueURL)

	for i := 0; i < q.opts.Partitions; i++ {
		q.wg.Add(1)
		go q.poller(i, handler)
	}

	q.started = true
	return nil
}

func (q *SQSQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return
	}

	logger.Info("Stopping SQS pollers...")
	q.cancel()
	q.wg.Wait()
	q.started = false
	logger.Info("SQS pollers stopped")
}

func (q *SQSQueue) receive() ([]types.Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: q.maxMessages,
		WaitTimeSeconds:     q.waitTimeSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameMessageGroupId,
		},
	}
	if q.visibilityTimeout > 0 {
		input.VisibilityTimeout = q.visibilityTimeout
	}

	out, err := q.client.ReceiveMessage(q.ctx, input)
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (q *SQSQueue) poller(id int, handler interfaces.DeliveryHandler) {
	defer q.wg.Done()

	logger.Debug("SQS poller %d started", id)

	for {
		select {
		case <-q.ctx.Done():
			logger.Debug("SQS poller %d stopped", id)
			return
		default:
		}

		messages, err := q.receive()
		if err != nil {
			if q.ctx.Err() != nil {
				continue
			}
			logger.Error("SQS poller %d receive error: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if len(messages) == 0 {
			continue
		}

		q.handleBatch(messages, handler)
	}
}

// handleBatch processes the groups of one receive concurrently and the
// messages inside a group in order. When a message fails, the rest of its
// group in this batch is left alone so redelivery keeps the original order.
func (q *SQSQueue) handleBatch(messages []types.Message, handler interfaces.DeliveryHandler) {
	var order []string
	groups := make(map[string][]types.Message)
	for _, m := range messages {
		key := m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)]
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	var wg sync.WaitGroup
	for _, key := range order {
		wg.Add(1)
		go func(key string, batch []types.Message) {
			defer wg.Done()
			for _, m := range batch {
				if !q.handleOne(key, m, handler) {
					logger.Warn("Leaving %d messages of group %s for redelivery", len(batch)-1, key)
					return
				}
			}
		}(key, groups[key])
	}
	wg.Wait()
}

func (q *SQSQueue) handleOne(groupKey string, m types.Message, handler interfaces.DeliveryHandler) bool {
	attempt, err := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil || attempt <= 0 {
		attempt = 1
	}

	d := &interfaces.Delivery{
		ID:       aws.ToString(m.MessageId),
		GroupKey: groupKey,
		Body:     []byte(aws.ToString(m.Body)),
		Attempt:  attempt,
		Final:    attempt >= q.opts.MaxAttempts,
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.opts.JobTimeout)
	err = handler(ctx, d)
	cancel()

	if err != nil && !d.Final {
		deliveryLog(d).Warnf("Delivery failed, leaving for redelivery: %v", err)
		return false
	}
	if err != nil {
		deliveryLog(d).Errorf("Dropping message after final attempt: %v", err)
	}

	delCtx, delCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer delCancel()
	if _, err := q.client.DeleteMessage(delCtx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		deliveryLog(d).Errorf("Failed to delete handled message: %v", err)
	}
	return true
}
