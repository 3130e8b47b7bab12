package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/moderator/internal/adapters/mq/queue"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// HeartbeatTick runs the resend sweep on every nth tick.
func (s *Service) HeartbeatTick(ctx context.Context, tick int) error {
	if s.resendEvery <= 0 || tick%s.resendEvery != 0 {
		return nil
	}
	return s.ResendStaleComments(ctx)
}

// CommentsToResendForScoring returns unresolved, unscored comments whose
// last dispatch is older than the stale threshold, capped at the batch size.
func (s *Service) CommentsToResendForScoring(ctx context.Context) ([]model.Comment, error) {
	cutoff := s.now().Add(-s.resendStaleAfter)
	comments, err := s.store.ListCommentsToResend(ctx, cutoff, s.resendBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list comments to resend: %w", err)
	}
	return comments, nil
}

// ResendStaleComments re-dispatches every stale comment to all scorers.
// One comment failing does not stop the others; the failures are joined
// into the returned error.
func (s *Service) ResendStaleComments(ctx context.Context) error {
	metrics.RecordResendSweep()

	comments, err := s.CommentsToResendForScoring(ctx)
	if err != nil {
		s.logger.Error(ctx, "resend sweep failed", logger.Error(err))
		return err
	}

	var errs []error
	for _, c := range comments {
		if err := s.SendForScoring(ctx, c.ID); err != nil {
			metrics.RecordResendResult("failed")
			s.logger.Error(ctx, "resend failed",
				logger.String("commentID", c.ID),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("resend comment %s: %w", c.ID, err))
			continue
		}
		metrics.RecordResendResult("sent")
	}

	if len(comments) > 0 {
		s.logger.Info(ctx, "resend sweep done",
			logger.Int("comments", len(comments)),
			logger.Int("failed", len(errs)),
		)
	}
	return errors.Join(errs...)
}

// runHeartbeat enqueues a heartbeat task on every tick until ctx ends.
func (s *Service) runHeartbeat(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := int(s.ticks.Add(1))
			if err := s.enqueueHeartbeat(ctx, tick); err != nil {
				s.logger.Warn(ctx, "heartbeat dropped",
					logger.Int("tick", tick),
					logger.Error(err),
				)
			}
		}
	}
}

// enqueueHeartbeat skips the started check, the ticker only runs while
// the service is started and Stop holds the lock while waiting for it.
func (s *Service) enqueueHeartbeat(ctx context.Context, tick int) error {
	q := s.queues[model.TaskHeartbeat]
	if !q.Enqueue(ctx, model.Task{
		ID:         uuid.NewString(),
		Kind:       model.TaskHeartbeat,
		Tick:       tick,
		EnqueuedAt: s.now(),
	}) {
		return fmt.Errorf("%w: %s: %w", ErrQueueFull, model.TaskHeartbeat, queue.ErrRejected)
	}
	return nil
}
