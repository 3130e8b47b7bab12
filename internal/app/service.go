// Package service wires the moderation pipeline: dispatch to scorers,
// score ingestion, completion detection, rule resolution and the resend
// sweep, plus the task runner that drives them.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/moderator/internal/adapters/mq/queue"
	"github.com/okian/moderator/internal/adapters/mq/worker"
	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/adapters/scorer"
	"github.com/okian/moderator/internal/domain/dedupe"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize        = 10000
	defaultDedupeSize       = 50000
	defaultMaxAttempts      = 5
	defaultRetryDelay       = 500 * time.Millisecond
	defaultResendEvery      = 6
	defaultResendBatchSize  = 100
	defaultResendStaleAfter = 5 * time.Minute
)

// taskKinds lists the kinds that get their own queue and worker.
var taskKinds = []model.TaskKind{ //nolint:gochecknoglobals // fixed set of task kinds
	model.TaskScore,
	model.TaskIngest,
	model.TaskHeartbeat,
	model.TaskResolve,
}

// Service implements the moderation pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	registry *scorer.Registry
	deduper  dedupe.Deduper
	denorm   Denormalizer
	hooks    []ModeratedHook
	pool     *worker.Pool
	queues   map[model.TaskKind]*queue.InMemoryQueue

	// Configuration
	queueSize         int
	dedupeSize        int
	maxAttempts       int
	retryDelay        time.Duration
	resendEvery       int
	resendBatchSize   int
	resendStaleAfter  time.Duration
	heartbeatInterval time.Duration
	scorerOpts        []scorer.Option
	now               func() time.Time

	// Comments whose fan-out is in progress. Synchronous scorers ingest
	// while the loop runs, so completion is checked once the loop ends.
	dispatchMu  sync.Mutex
	dispatching map[string]int

	// State
	started       bool
	cancel        context.CancelFunc
	heartbeatDone chan struct{}
	ticks         atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueueSize sets the capacity of each task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the number of webhook delivery ids remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxAttempts bounds how often a task is tried.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the base delay before a failed task is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithResendEvery runs the resend sweep on every nth heartbeat tick.
func WithResendEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.resendEvery = n
		}
	}
}

// WithResendBatchSize caps the comments re-dispatched per sweep.
func WithResendBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.resendBatchSize = n
		}
	}
}

// WithResendStaleAfter sets how long a comment waits for scores before
// it is re-dispatched.
func WithResendStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.resendStaleAfter = d
		}
	}
}

// WithHeartbeatInterval starts an in-process heartbeat ticker on Start.
// Zero leaves ticking to an external scheduler.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.heartbeatInterval = d
		}
	}
}

// WithScorerOptions configures the scorer registry.
func WithScorerOptions(opts ...scorer.Option) Option {
	return func(s *Service) {
		s.scorerOpts = append(s.scorerOpts, opts...)
	}
}

// WithDenormalizer replaces the store-backed count denormalizer.
func WithDenormalizer(d Denormalizer) Option {
	return func(s *Service) {
		if d != nil {
			s.denorm = d
		}
	}
}

// WithModeratedHook registers a hook called once per recorded decision.
func WithModeratedHook(h ModeratedHook) Option {
	return func(s *Service) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithDeduper replaces the in-memory webhook deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service on top of store.
func New(store repository.Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:            store,
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		maxAttempts:      defaultMaxAttempts,
		retryDelay:       defaultRetryDelay,
		resendEvery:      defaultResendEvery,
		resendBatchSize:  defaultResendBatchSize,
		resendStaleAfter: defaultResendStaleAfter,
		now:              func() time.Time { return time.Now().UTC() },
		dispatching:      make(map[string]int),
		logger:           logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		return nil, ErrNoStore
	}
	s.logger = s.logger.Named("moderator")

	registry, err := scorer.NewRegistry(s, s.scorerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create scorer registry: %w", err)
	}
	s.registry = registry

	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.denorm == nil {
		s.denorm = NewStoreDenormalizer(s.store)
	}
	return s, nil
}

// Start creates one queue and one sequential worker per task kind and,
// if configured, the heartbeat ticker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting moderation service...")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.pool = worker.NewPool(s.logger)
	s.queues = make(map[model.TaskKind]*queue.InMemoryQueue, len(taskKinds))

	for _, kind := range taskKinds {
		q := queue.NewInMemoryQueue(
			queue.WithCapacity(s.queueSize),
			queue.WithName(string(kind)),
		)
		s.queues[kind] = q
		s.pool.Add(worker.NewInMemoryWorker(q, worker.HandlerFunc(s.handleTask),
			worker.WithName(string(kind)+"-worker"),
			worker.WithLogger(s.logger),
			worker.WithMaxAttempts(s.maxAttempts),
			worker.WithRetryDelay(s.retryDelay),
			worker.WithRetryable(retryable),
		))
	}
	s.pool.Start(runCtx)

	if s.heartbeatInterval > 0 {
		s.heartbeatDone = make(chan struct{})
		go s.runHeartbeat(runCtx, s.heartbeatDone)
	}

	s.started = true
	s.logger.Info(ctx, "moderation service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxAttempts", s.maxAttempts),
		logger.Duration("heartbeat", s.heartbeatInterval),
	)
	return nil
}

// Stop drains the queues and waits for the workers to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping moderation service...")

	var err error
	if s.pool != nil {
		err = s.pool.Shutdown(ctx)
	}
	s.cancel()
	if s.heartbeatDone != nil {
		<-s.heartbeatDone
		s.heartbeatDone = nil
	}

	s.started = false
	s.logger.Info(ctx, "moderation service stopped")
	return err
}

// Store returns the persistence port the service runs on.
func (s *Service) Store() repository.Store {
	return s.store
}

// Registry returns the scorer shim registry.
func (s *Service) Registry() *scorer.Registry {
	return s.registry
}

// SeenAndRecord atomically checks if a delivery id was seen and records it
// if not. Returns true if the delivery was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordWebhookDuplicate()
	}
	return seen
}

// Unrecord forgets a delivery id, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// EnqueueScoring schedules SendForScoring for a comment.
func (s *Service) EnqueueScoring(ctx context.Context, commentID string) error {
	return s.enqueue(ctx, model.Task{Kind: model.TaskScore, CommentID: commentID})
}

// EnqueueDelivery schedules ingestion of a webhook delivery.
func (s *Service) EnqueueDelivery(ctx context.Context, requestID string, data model.ScoreData) error {
	return s.enqueue(ctx, model.Task{Kind: model.TaskIngest, RequestID: requestID, Data: &data})
}

// EnqueueResolve schedules ProcessRulesForComment for a comment.
func (s *Service) EnqueueResolve(ctx context.Context, commentID string) error {
	return s.enqueue(ctx, model.Task{Kind: model.TaskResolve, CommentID: commentID})
}

// EnqueueHeartbeat schedules a heartbeat tick.
func (s *Service) EnqueueHeartbeat(ctx context.Context, tick int) error {
	return s.enqueue(ctx, model.Task{Kind: model.TaskHeartbeat, Tick: tick})
}

func (s *Service) enqueue(ctx context.Context, t model.Task) error { //nolint:gocritic // hugeParam: Task is passed by value end to end
	s.mu.RLock()
	started := s.started
	q := s.queues[t.Kind]
	s.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}
	if q == nil {
		return fmt.Errorf("%w: kind %q", ErrInvalidTask, t.Kind)
	}

	t.ID = uuid.NewString()
	t.EnqueuedAt = s.now()
	if !q.Enqueue(ctx, t) {
		return fmt.Errorf("%w: %s: %w", ErrQueueFull, t.Kind, queue.ErrRejected)
	}
	s.logger.Debug(ctx, "task enqueued",
		logger.String("taskID", t.ID),
		logger.String("kind", string(t.Kind)),
		logger.String("commentID", t.CommentID),
	)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"maxAttempts":     s.maxAttempts,
		"resendEvery":     s.resendEvery,
		"resendBatchSize": s.resendBatchSize,
		"cachedShims":     s.registry.Len(),
		"seenDeliveries":  s.deduper.Size(),
		"ticks":           s.ticks.Load(),
	}

	if s.started {
		lengths := make(map[string]int, len(s.queues))
		for kind, q := range s.queues {
			lengths[string(kind)] = q.Len(ctx)
		}
		stats["queueLengths"] = lengths
		stats["workers"] = s.pool.Size()
	}

	return stats
}

// Size returns the number of delivery ids currently remembered.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
