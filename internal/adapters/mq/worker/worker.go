// Package worker runs sequential task handlers off in-memory queues.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultMaxAttempts  = 5
	defaultRetryDelay   = 500 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
)

// Task abstracts what workers read off the queue.
type Task = model.Task

// Handler processes a single task.
type Handler interface {
	Handle(ctx context.Context, t Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Task) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t Task) error { //nolint:gocritic // hugeParam: Task is passed by value end to end
	return f(ctx, t)
}

// Queue defines how workers receive and re-submit tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
	Enqueue(ctx context.Context, t Task) bool
}

// Worker processes tasks from one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker handles tasks one at a time and re-enqueues failures
// until they run out of attempts.
type InMemoryWorker struct {
	queue       Queue
	handler     Handler
	name        string
	maxAttempts int
	retryDelay  time.Duration
	retryable   func(error) bool

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       queue,
		handler:     handler,
		name:        "worker",
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		retryable:   func(error) bool { return true },
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.Named(w.name)
	return w
}

// Name returns the worker's name.
func (w *InMemoryWorker) Name() string {
	return w.name
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.process(ctx, task)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, task Task) { //nolint:gocritic // hugeParam: Task must be passed by value for channel semantics
	start := time.Now()
	err := w.handler.Handle(ctx, task)
	elapsed := time.Since(start).Seconds()
	kind := string(task.Kind)

	if err == nil {
		metrics.RecordTaskProcessed(kind, "ok", elapsed)
		return
	}

	metrics.RecordErrorByComponent("worker", kind)
	attempt := task.Attempt + 1
	if !w.retryable(err) || attempt >= w.maxAttempts {
		metrics.RecordTaskProcessed(kind, "failed", elapsed)
		w.logger.Error(ctx, "task failed permanently",
			logger.String("taskID", task.ID),
			logger.String("kind", kind),
			logger.String("commentID", task.CommentID),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		return
	}

	metrics.RecordTaskProcessed(kind, "retry", elapsed)
	metrics.RecordTaskRetry(kind)
	w.logger.Warn(ctx, "task failed, retrying",
		logger.String("taskID", task.ID),
		logger.String("kind", kind),
		logger.String("commentID", task.CommentID),
		logger.Int("attempt", attempt),
		logger.Error(err),
	)

	task.Attempt = attempt
	delay := w.retryDelay * time.Duration(attempt)
	time.AfterFunc(delay, func() {
		if !w.queue.Enqueue(context.Background(), task) {
			w.logger.Error(context.Background(), "dropping task, queue refused retry",
				logger.String("taskID", task.ID),
				logger.String("kind", kind),
			)
		}
	})
}

// Pool runs one sequential worker per task kind.
type Pool struct {
	mu      sync.Mutex
	workers []*InMemoryWorker
	closers []interface{ Close() error }
	logger  logger.Logger
}

// NewPool creates an empty pool.
func NewPool(log logger.Logger) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{logger: log.Named("worker-pool")}
}

// Add registers a worker. Queues that can be closed are closed on Shutdown.
func (p *Pool) Add(w *InMemoryWorker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workers = append(p.workers, w)
	if closer, ok := w.queue.(interface{ Close() error }); ok {
		p.closers = append(p.closers, closer)
	}
}

// Size returns the number of registered workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queues and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	workers := append([]*InMemoryWorker(nil), p.workers...)
	closers := append([]interface{ Close() error }(nil), p.closers...)
	p.mu.Unlock()

	for _, c := range closers {
		if err := c.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for _, w := range workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.String("worker", w.name))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
