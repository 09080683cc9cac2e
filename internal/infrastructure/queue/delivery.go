package queue

import (
	"context"
	"errors"
	"time"

	"course-enrollment/internal/config"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	"course-enrollment/pkg/logger"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPartitions     = 8
	DefaultMaxAttempts    = 5
	DefaultRetryBackoff   = 200 * time.Millisecond
	DefaultJobTimeout     = 30 * time.Second
	DefaultDequeueTimeout = 2 * time.Second
	WorkerSleepDuration   = 50 * time.Millisecond
)

// errStopped means the consumer stopped while a delivery was waiting to be
// retried. The message must be left on the broker.
var errStopped = errors.New("consumer stopped before delivery completed")

// Options tunes delivery for every backend.
type Options struct {
	Partitions   int
	MaxAttempts  int
	RetryBackoff time.Duration
	JobTimeout   time.Duration
}

func OptionsFromConfig(cfg config.QueueConfig) Options {
	return Options{
		Partitions:   cfg.Partitions,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff(),
		JobTimeout:   cfg.JobTimeout(),
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Partitions <= 0 {
		o.Partitions = DefaultPartitions
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeout
	}
	return o
}

// PartitionFor maps a FIFO group key onto one of n partitions. All messages
// of a group land on the same partition.
func PartitionFor(groupKey string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(groupKey) % uint64(n))
}

// deliver hands d to handler, retrying in place with linear backoff so later
// messages of the same partition wait behind it. A delivery that still fails
// on its final attempt is logged and dropped. errStopped is returned when
// stop fires during a backoff wait.
func deliver(stop <-chan struct{}, opts Options, d *interfaces.Delivery, handler interfaces.DeliveryHandler) error {
	if d.Attempt <= 0 {
		d.Attempt = 1
	}

	for {
		d.Final = d.Attempt >= opts.MaxAttempts

		ctx, cancel := context.WithTimeout(context.Background(), opts.JobTimeout)
		err := handler(ctx, d)
		cancel()

		if err == nil {
			return nil
		}
		if d.Final {
			deliveryLog(d).Errorf("Dropping message after final attempt: %v", err)
			return nil
		}
		deliveryLog(d).Warnf("Delivery failed, retrying: %v", err)

		select {
		case <-stop:
			return errStopped
		case <-time.After(opts.RetryBackoff * time.Duration(d.Attempt)):
		}
		d.Attempt++
	}
}

func deliveryLog(d *interfaces.Delivery) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"message_id": d.ID,
		"group_key":  d.GroupKey,
		"attempt":    d.Attempt,
	})
}
