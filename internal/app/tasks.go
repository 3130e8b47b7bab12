package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/domain/model"
)

// handleTask routes a task to the pipeline stage of its kind.
func (s *Service) handleTask(ctx context.Context, t model.Task) error { //nolint:gocritic // hugeParam: Task is passed by value end to end
	switch t.Kind {
	case model.TaskScore:
		return s.SendForScoring(ctx, t.CommentID)
	case model.TaskIngest:
		if t.Data == nil {
			return fmt.Errorf("%w: ingest task %s has no data", ErrInvalidTask, t.ID)
		}
		return s.IngestDelivery(ctx, t.RequestID, *t.Data)
	case model.TaskHeartbeat:
		return s.HeartbeatTick(ctx, t.Tick)
	case model.TaskResolve:
		return s.ProcessRulesForComment(ctx, t.CommentID)
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidTask, t.Kind)
	}
}

// retryable reports whether a failed task may succeed on another attempt.
// Integrity failures, missing rows and malformed tasks never will.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrDataIntegrity),
		errors.Is(err, ErrInvalidTask),
		errors.Is(err, repository.ErrNotFound):
		return false
	default:
		return true
	}
}
