// Package redis provides a queue.Broker backed by a Redis list. Producers
// RPUSH encoded messages; the consumer loop BLPOPs with a short poll
// timeout so shutdown stays responsive.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/backoff"
	"github.com/SpicychieF05/StreamZip/job"
	"github.com/SpicychieF05/StreamZip/queue"
)

var _ queue.Broker = (*Broker)(nil)

const (
	defaultKey         = "streamzip:queue:downloads"
	defaultPollTimeout = 2 * time.Second
)

// Option configures the Broker.
type Option func(*Broker)

// WithKey sets the Redis list key.
func WithKey(key string) Option {
	return func(b *Broker) { b.key = key }
}

// WithCodec sets the message codec. Defaults to msgpack.
func WithCodec(c queue.Codec) Option {
	return func(b *Broker) { b.codec = c }
}

// WithPollTimeout sets the BLPOP timeout per poll iteration.
func WithPollTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.pollTimeout = d
		}
	}
}

// WithMaxRedeliveries sets how many times a nacked message is requeued
// before being dropped. Zero drops on first nack.
func WithMaxRedeliveries(n int) Option {
	return func(b *Broker) { b.maxRedeliveries = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

// WithRetryBackoff sets the delay strategy applied after consecutive poll
// failures. Defaults to backoff.Default.
func WithRetryBackoff(s backoff.Strategy) Option {
	return func(b *Broker) { b.retryDelay = s }
}

// envelope wraps the codec-encoded message with its delivery count so the
// count survives requeues. Always msgpack on the wire.
type envelope struct {
	Attempt int    `msgpack:"attempt"`
	Body    []byte `msgpack:"body"`
}

// Broker is a Redis-list-backed queue.Broker.
type Broker struct {
	client goredis.Cmdable
	logger *slog.Logger
	codec  queue.Codec

	key             string
	pollTimeout     time.Duration
	maxRedeliveries int
	retryDelay      backoff.Strategy

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// New creates a Broker on the given client. The caller owns the client
// lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Broker {
	b := &Broker{
		client:      client,
		logger:      slog.Default(),
		codec:       &queue.MsgpackCodec{},
		key:         defaultKey,
		pollTimeout: defaultPollTimeout,
		retryDelay:  backoff.Default(),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Enqueue pushes a message onto the tail of the list.
func (b *Broker) Enqueue(ctx context.Context, msg job.Message) error {
	return b.push(ctx, msg, 1)
}

func (b *Broker) push(ctx context.Context, msg job.Message, attempt int) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return streamzip.ErrQueueClosed
	}

	body, err := b.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("streamzip/queue/redis: encode message: %w", err)
	}
	data, err := msgpack.Marshal(envelope{Attempt: attempt, Body: body})
	if err != nil {
		return fmt.Errorf("streamzip/queue/redis: encode envelope: %w", err)
	}
	if err := b.client.RPush(ctx, b.key, data).Err(); err != nil {
		return fmt.Errorf("streamzip/queue/redis: rpush: %w", err)
	}
	return nil
}

// Consume starts the poll loop and returns the delivery channel. The
// channel closes when ctx is cancelled or the broker is closed.
func (b *Broker) Consume(ctx context.Context) (<-chan *queue.Delivery, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, streamzip.ErrQueueClosed
	}

	out := make(chan *queue.Delivery)
	go b.poll(ctx, out)
	return out, nil
}

func (b *Broker) poll(ctx context.Context, out chan<- *queue.Delivery) {
	defer close(out)
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		vals, err := b.client.BLPop(ctx, b.pollTimeout, b.key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				failures = 0
				continue // poll timeout, nothing queued
			}
			if ctx.Err() != nil {
				return
			}
			failures++
			delay := b.retryDelay.Delay(failures)
			b.logger.Warn("queue poll failed",
				slog.String("key", b.key),
				slog.Duration("retry_in", delay),
				slog.String("error", err.Error()),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
			continue
		}
		failures = 0
		if len(vals) != 2 {
			continue
		}

		var env envelope
		if err := msgpack.Unmarshal([]byte(vals[1]), &env); err != nil {
			b.logger.Warn("discarding undecodable envelope",
				slog.String("key", b.key),
				slog.String("error", err.Error()),
			)
			continue
		}
		msg, err := b.codec.Decode(env.Body)
		if err != nil {
			b.logger.Warn("discarding undecodable message",
				slog.String("key", b.key),
				slog.String("error", err.Error()),
			)
			continue
		}

		d := queue.NewDelivery(msg, env.Attempt, nil, b.nackFunc(msg, env.Attempt))
		select {
		case out <- d:
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

func (b *Broker) nackFunc(msg job.Message, attempt int) func() {
	return func() {
		if attempt > b.maxRedeliveries {
			b.logger.Warn("message dropped after redelivery budget",
				slog.String("job_id", msg.JobID.String()),
				slog.Int("attempt", attempt),
			)
			return
		}
		if err := b.push(context.Background(), msg, attempt+1); err != nil {
			b.logger.Warn("redelivery failed",
				slog.String("job_id", msg.JobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close stops the poll loop. Queued messages stay in Redis for the next
// consumer.
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
