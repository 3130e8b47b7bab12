package service

import (
	"context"
	"fmt"

	"github.com/okian/moderator/internal/domain/completion"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// CheckScoringDone stamps the comment as sent for scoring and, when every
// scorer has answered, finalizes it: the comment is marked scored, rules
// are applied and counts are denormalized. It reports whether scoring
// was complete.
func (s *Service) CheckScoringDone(ctx context.Context, commentID string) (bool, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return false, fmt.Errorf("load comment: %w", err)
	}
	now := s.now()
	comment.SentForScoring = &now
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return false, fmt.Errorf("stamp sent for scoring: %w", err)
	}

	requests, err := s.store.ListScoreRequests(ctx, commentID)
	if err != nil {
		return false, fmt.Errorf("list score requests: %w", err)
	}
	if !completion.ScoresComplete(requests) {
		s.logger.Debug(ctx, "scoring pending",
			logger.String("commentID", commentID),
			logger.Strings("scorers", completion.Pending(requests)),
		)
		return false, nil
	}

	comment.IsScored = true
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return true, fmt.Errorf("mark scored: %w", err)
	}
	metrics.RecordCommentScored()

	if err := s.ProcessRulesForComment(ctx, commentID); err != nil {
		return true, fmt.Errorf("process rules: %w", err)
	}

	comment, err = s.store.GetComment(ctx, commentID)
	if err != nil {
		return true, fmt.Errorf("reload comment: %w", err)
	}
	if err := s.denorm.DenormalizeCountsForComment(ctx, comment); err != nil {
		metrics.RecordErrorByComponent("denormalize", "recount_failed")
		s.logger.Warn(ctx, "denormalize counts failed",
			logger.String("commentID", commentID),
			logger.Error(err),
		)
	}

	s.logger.Info(ctx, "comment scored", logger.String("commentID", commentID))
	return true, nil
}
