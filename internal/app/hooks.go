package service

import (
	"context"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// ModeratedHook is notified after a decision is recorded.
type ModeratedHook interface {
	CommentModerated(ctx context.Context, c model.Comment, d model.Decision) error
}

// ModeratedHookFunc adapts a function to ModeratedHook.
type ModeratedHookFunc func(ctx context.Context, c model.Comment, d model.Decision) error

// CommentModerated calls f.
func (f ModeratedHookFunc) CommentModerated(ctx context.Context, c model.Comment, d model.Decision) error {
	return f(ctx, c, d)
}

// runHooks calls every hook once. Failures are logged and counted.
func (s *Service) runHooks(ctx context.Context, c model.Comment, d model.Decision) {
	for _, h := range s.hooks {
		if err := h.CommentModerated(ctx, c, d); err != nil {
			metrics.RecordHookFailure()
			s.logger.Warn(ctx, "moderated hook failed",
				logger.String("commentID", c.ID),
				logger.String("decisionID", d.ID),
				logger.Error(err),
			)
		}
	}
}
