package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

// ProcessorQueue is an in-process Publisher that runs a Handler on a fixed
// pool of goroutines. It backs standalone mode and tests.
type ProcessorQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan entity.QueueMessage
	wg   sync.WaitGroup
	once sync.Once

	// ch is closed only after every in-flight Publish has returned.
	mu      sync.RWMutex
	closed  bool
	stop    chan struct{}
	sending sync.WaitGroup
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan entity.QueueMessage, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 30 * time.Minute,
		ch:      make(chan entity.QueueMessage, 256),
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for msg := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.handler(ctx, msg)
					cancel()

					if err != nil {
						q.logger.Error("queue.message.handler_error", "worker_id", workerID, "job_id", msg.JobID, "error", err)
					}
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Publish enqueues msg, blocking while the buffer is full until ctx ends or
// the queue shuts down.
func (q *ProcessorQueue) Publish(ctx context.Context, msg entity.QueueMessage) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.logger.Warn("queue.publish.rejected", "job_id", msg.JobID, "reason", "shutting down")
		return ErrClosed
	}
	q.sending.Add(1)
	q.mu.RUnlock()
	defer q.sending.Done()

	select {
	case q.ch <- msg:
		q.logger.Info("queue.published", "job_id", msg.JobID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", msg.JobID)
	select {
	case q.ch <- msg:
		return nil
	case <-q.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting messages and waits for queued ones to drain.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.sending.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
