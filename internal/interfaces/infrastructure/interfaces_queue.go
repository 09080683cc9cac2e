package interfaces

import (
	"context"
)

// OutboundMessage is one work item to publish. Messages sharing GroupKey are
// delivered in publish order and never concurrently.
type OutboundMessage struct {
	GroupKey        string
	DeduplicationID string
	Body            []byte
}

// Delivery is a received message. Attempt starts at 1; Final is set on the
// last attempt the consumer will make before giving up on the message.
type Delivery struct {
	ID       string
	GroupKey string
	Body     []byte
	Attempt  int
	Final    bool
}

// DeliveryHandler returns an error only when the message should be retried.
type DeliveryHandler func(ctx context.Context, d *Delivery) error

type MessageProducer interface {
	Publish(ctx context.Context, msg *OutboundMessage) error
	Close() error
}

type MessageConsumer interface {
	// Start launches the consumer goroutines and returns immediately.
	Start(handler DeliveryHandler) error
	// Stop stops pulling new messages and waits for in-flight ones.
	Stop()
}
