package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/queue"
)

// Pool manages a set of concurrent worker goroutines that consume queue
// deliveries and execute them through the Executor.
type Pool struct {
	broker      queue.Broker
	executor    *Executor
	extensions  *hook.Registry
	concurrency int
	workerID    id.WorkerID
	logger      *slog.Logger

	cancelConsume context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewPool creates a worker pool. The default concurrency is one worker,
// matching the serial download behavior most deployments want against
// rate-limited sources.
func NewPool(
	broker queue.Broker,
	executor *Executor,
	extensions *hook.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		broker:      broker,
		executor:    executor,
		extensions:  extensions,
		concurrency: 1,
		workerID:    id.NewWorkerID(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start opens the consume stream and launches the worker goroutines. It
// returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	consumeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	deliveries, err := p.broker.Consume(consumeCtx)
	if err != nil {
		cancel()
		return err
	}
	p.cancelConsume = cancel
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.workLoop(deliveries)
	}
	return nil
}

// Stop stops consuming and waits for in-flight jobs to finish or the
// context deadline, whichever comes first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancelConsume
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out with jobs in flight")
	}
	return nil
}

// workLoop is run by each worker goroutine. It drains the delivery channel
// until the broker closes it.
func (p *Pool) workLoop(deliveries <-chan *queue.Delivery) {
	defer p.wg.Done()

	for d := range deliveries {
		if err := p.executor.Execute(context.Background(), d.Msg); err != nil {
			p.logger.Error("message processing failed",
				slog.String("job_id", d.Msg.JobID.String()),
				slog.Int("attempt", d.Attempt),
				slog.String("error", err.Error()),
			)
			d.Nack()
			continue
		}
		d.Ack()
	}
}
