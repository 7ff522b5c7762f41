// Package memory provides an in-process queue.Broker backed by a buffered
// channel. It is the default broker for single-process deployments and the
// substitute used in tests.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/backoff"
	"github.com/SpicychieF05/StreamZip/job"
	"github.com/SpicychieF05/StreamZip/queue"
)

var _ queue.Broker = (*Broker)(nil)

const defaultCapacity = 256

// Option configures the Broker.
type Option func(*Broker)

// WithCapacity sets the channel buffer size.
func WithCapacity(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithMaxRedeliveries sets how many times a nacked message is redelivered
// before being dropped. Zero drops on first nack.
func WithMaxRedeliveries(n int) Option {
	return func(b *Broker) { b.maxRedeliveries = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

// WithRedeliveryBackoff sets the delay strategy applied before a nacked
// message is requeued. Defaults to no delay.
func WithRedeliveryBackoff(s backoff.Strategy) Option {
	return func(b *Broker) { b.redeliveryDelay = s }
}

type envelope struct {
	msg     job.Message
	attempt int
}

// Broker is a channel-backed queue.Broker. Safe for concurrent use.
type Broker struct {
	capacity        int
	maxRedeliveries int
	redeliveryDelay backoff.Strategy
	logger          *slog.Logger

	ch   chan envelope
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// New returns a ready Broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		capacity: defaultCapacity,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	b.ch = make(chan envelope, b.capacity)
	return b
}

// Enqueue submits a message. Blocks when the buffer is full until space
// frees up, ctx is cancelled, or the broker closes.
func (b *Broker) Enqueue(ctx context.Context, msg job.Message) error {
	return b.put(ctx, envelope{msg: msg, attempt: 1})
}

func (b *Broker) put(ctx context.Context, e envelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return streamzip.ErrQueueClosed
	}

	select {
	case b.ch <- e:
		return nil
	case <-b.done:
		return streamzip.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns the delivery channel. The channel closes when ctx is
// cancelled or the broker is closed.
func (b *Broker) Consume(ctx context.Context) (<-chan *queue.Delivery, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, streamzip.ErrQueueClosed
	}

	out := make(chan *queue.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case e := <-b.ch:
				d := queue.NewDelivery(e.msg, e.attempt, nil, b.nackFunc(e))
				select {
				case out <- d:
				case <-b.done:
					return
				case <-ctx.Done():
					return
				}
			case <-b.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// nackFunc re-enqueues the message until its redelivery budget runs out.
// A configured redelivery backoff arms a timer for the requeue so the
// nacking worker is never stalled.
func (b *Broker) nackFunc(e envelope) func() {
	return func() {
		if e.attempt > b.maxRedeliveries {
			b.logger.Warn("message dropped after redelivery budget",
				slog.String("job_id", e.msg.JobID.String()),
				slog.Int("attempt", e.attempt),
			)
			return
		}
		if b.redeliveryDelay != nil {
			time.AfterFunc(b.redeliveryDelay.Delay(e.attempt), func() {
				b.requeue(e)
			})
			return
		}
		b.requeue(e)
	}
}

func (b *Broker) requeue(e envelope) {
	if err := b.put(context.Background(), envelope{msg: e.msg, attempt: e.attempt + 1}); err != nil {
		b.logger.Warn("redelivery failed",
			slog.String("job_id", e.msg.JobID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Close stops the broker. Buffered messages that were never delivered are
// dropped.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}

// Len reports the number of buffered, undelivered messages.
func (b *Broker) Len() int { return len(b.ch) }
