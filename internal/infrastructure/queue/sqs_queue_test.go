package queue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"course-enrollment/internal/config"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	mu       sync.Mutex
	sent     []*sqs.SendMessageInput
	batches  [][]types.Message
	deleted  []string
	received int
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	return &sqs.SendMessageOutput{MessageId: aws.String(strconv.Itoa(len(f.sent)))}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.received++
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return &sqs.ReceiveMessageOutput{}, nil
	}
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func sqsMessage(id, group, body string, receiveCount int) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameMessageGroupId):          group,
			string(types.MessageSystemAttributeNameApproximateReceiveCount): strconv.Itoa(receiveCount),
		},
	}
}

func TestNewSQSQueue_RequiresURL(t *testing.T) {
	_, err := NewSQSQueue(&fakeSQS{}, config.SQSConfig{}, Options{})
	assert.Error(t, err)
}

func TestSQSQueue_PublishSetsFIFOAttributes(t *testing.T) {
	fake := &fakeSQS{}
	q, err := NewSQSQueue(fake, config.SQSConfig{QueueURL: "https://sqs.local/q.fifo"}, Options{})
	require.NoError(t, err)

	err = q.Publish(context.Background(), &interfaces.OutboundMessage{
		GroupKey:        "enrollment-10",
		DeduplicationID: "b1-10-ENROLL",
		Body:            []byte(`{"type":"student-enrollment"}`),
	})
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	sent := fake.sent[0]
	assert.Equal(t, "https://sqs.local/q.fifo", aws.ToString(sent.QueueUrl))
	assert.Equal(t, "enrollment-10", aws.ToString(sent.MessageGroupId))
	assert.Equal(t, "b1-10-ENROLL", aws.ToString(sent.MessageDeduplicationId))
	assert.Equal(t, `{"type":"student-enrollment"}`, aws.ToString(sent.MessageBody))
}

func TestSQSQueue_FailedMessageHoldsBackItsGroup(t *testing.T) {
	fake := &fakeSQS{
		batches: [][]types.Message{{
			sqsMessage("a1", "enrollment-1", "a1", 1),
			sqsMessage("a2", "enrollment-1", "a2", 1),
			sqsMessage("b1", "enrollment-2", "b1", 1),
		}},
	}
	q, err := NewSQSQueue(fake, config.SQSConfig{QueueURL: "q.fifo"}, Options{Partitions: 1, MaxAttempts: 3})
	require.NoError(t, err)

	var mu sync.Mutex
	var handled []string
	require.NoError(t, q.Start(func(ctx context.Context, d *interfaces.Delivery) error {
		mu.Lock()
		handled = append(handled, string(d.Body))
		mu.Unlock()
		if string(d.Body) == "a1" {
			return errors.New("lock timeout")
		}
		return nil
	}))

	require.Eventually(t, func() bool {
		return len(fake.deletedHandles()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	q.Stop()

	assert.Equal(t, []string{"rh-b1"}, fake.deletedHandles())
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a1", "b1"}, handled)
}

func TestSQSQueue_FinalAttemptIsDeletedEvenOnError(t *testing.T) {
	fake := &fakeSQS{
		batches: [][]types.Message{{sqsMessage("a1", "enrollment-1", "a1", 3)}},
	}
	q, err := NewSQSQueue(fake, config.SQSConfig{QueueURL: "q.fifo"}, Options{Partitions: 1, MaxAttempts: 3})
	require.NoError(t, err)

	var final bool
	var mu sync.Mutex
	require.NoError(t, q.Start(func(ctx context.Context, d *interfaces.Delivery) error {
		mu.Lock()
		final = d.Final
		mu.Unlock()
		return errors.New("still failing")
	}))

	require.Eventually(t, func() bool {
		return len(fake.deletedHandles()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, final)
}
