// Package queue defines the broker contract that decouples job submission
// from job execution. A Broker carries job.Message values from the intake
// surface to worker processes; implementations live in the memory and redis
// subpackages.
package queue

import (
	"context"

	"github.com/SpicychieF05/StreamZip/job"
)

// Broker transports job messages between producers and consumers.
type Broker interface {
	// Enqueue submits a message for eventual delivery. Returns
	// streamzip.ErrQueueClosed after Close.
	Enqueue(ctx context.Context, msg job.Message) error

	// Consume returns a channel of deliveries. The channel is closed when
	// ctx is cancelled or the broker is closed. A broker supports a single
	// consumer loop; workers fan out from the returned channel.
	Consume(ctx context.Context) (<-chan *Delivery, error)

	// Close releases broker resources. Pending messages are dropped or
	// retained depending on the backend.
	Close() error
}

// Delivery is a single message handed to a consumer. The consumer must
// settle it exactly once with Ack or Nack.
type Delivery struct {
	Msg job.Message

	// Attempt counts deliveries of this message, starting at 1.
	Attempt int

	ack  func()
	nack func()
}

// NewDelivery builds a Delivery with the given settlement callbacks.
// Intended for broker implementations; either callback may be nil.
func NewDelivery(msg job.Message, attempt int, ack, nack func()) *Delivery {
	return &Delivery{Msg: msg, Attempt: attempt, ack: ack, nack: nack}
}

// Ack marks the delivery as successfully handled.
func (d *Delivery) Ack() {
	if d.ack != nil {
		d.ack()
	}
}

// Nack signals the message was not handled. Depending on the broker and its
// redelivery budget, the message is redelivered or dropped.
func (d *Delivery) Nack() {
	if d.nack != nil {
		d.nack()
	}
}
