package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/internal/domain/state"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// Manual moderation actions.
const (
	ActionAccept    = "accept"
	ActionReject    = "reject"
	ActionDefer     = "defer"
	ActionHighlight = "highlight"
	ActionReset     = "reset"
)

// SetCommentState merges bundle and extra onto the comment, persists it
// and denormalizes the counts of its article. Fields set in bundle win
// over extra. A failed recount is logged and does not fail the state
// change.
func (s *Service) SetCommentState(
	ctx context.Context,
	comment model.Comment,
	source model.Source,
	bundle, extra state.Bundle,
) (model.Comment, error) {
	updated := state.Apply(comment, state.Merge(bundle, extra))
	updated.UpdatedAt = s.now()
	if err := s.store.UpdateComment(ctx, updated); err != nil {
		return comment, fmt.Errorf("save comment state: %w", err)
	}
	if err := s.denorm.DenormalizeCountsForComment(ctx, updated); err != nil {
		metrics.RecordErrorByComponent("denormalize", "recount_failed")
		s.logger.Warn(ctx, "denormalize counts failed",
			logger.String("commentID", updated.ID),
			logger.String("articleID", updated.ArticleID),
			logger.Error(err),
		)
	}

	s.logger.Debug(ctx, "comment state changed",
		logger.String("commentID", updated.ID),
		logger.String("source", string(source.Kind)),
		logger.String("sourceID", source.ID),
		logger.Bool("moderated", updated.IsModerated),
		logger.Bool("accepted", updated.Accepted()),
		logger.Bool("highlighted", updated.IsHighlighted),
	)
	return updated, nil
}

// RecordDecision stores a new current decision for the comment and calls
// the moderated hooks once.
func (s *Service) RecordDecision(
	ctx context.Context,
	comment model.Comment,
	status model.DecisionStatus,
	source model.Source,
) (model.Decision, error) {
	now := s.now()
	d, err := s.store.RecordDecision(ctx, model.Decision{
		CommentID:         comment.ID,
		Status:            status,
		Source:            source,
		IsCurrentDecision: true,
		CreatedAt:         now,
	})
	if err != nil {
		return model.Decision{}, fmt.Errorf("record decision: %w", err)
	}

	current, err := s.store.GetComment(ctx, comment.ID)
	if err != nil {
		return d, fmt.Errorf("reload comment: %w", err)
	}
	current.UpdatedAt = now
	if err := s.store.UpdateComment(ctx, current); err != nil {
		return d, fmt.Errorf("touch comment: %w", err)
	}

	metrics.RecordDecision(string(status), string(source.Kind))
	s.runHooks(ctx, current, d)
	return d, nil
}

// Moderate applies a manual moderation action to a comment. Every action
// but reset records a decision.
func (s *Service) Moderate(ctx context.Context, commentID, action string, source model.Source) (model.Comment, error) {
	var (
		bundle state.Bundle
		status model.DecisionStatus
	)
	switch strings.ToLower(action) {
	case ActionAccept:
		bundle, status = state.Accept(), model.StatusAccept
	case ActionReject:
		bundle, status = state.Reject(), model.StatusReject
	case ActionDefer:
		bundle, status = state.Defer(), model.StatusDefer
	case ActionHighlight:
		bundle, status = state.Highlight(), model.StatusAccept
	case ActionReset:
		bundle = state.Reset()
	default:
		return model.Comment{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return model.Comment{}, fmt.Errorf("load comment: %w", err)
	}
	comment, err = s.SetCommentState(ctx, comment, source, bundle, state.Bundle{})
	if err != nil {
		return model.Comment{}, err
	}
	if status == "" {
		return comment, nil
	}
	if _, err := s.RecordDecision(ctx, comment, status, source); err != nil {
		return model.Comment{}, err
	}
	return s.store.GetComment(ctx, commentID)
}

// Accept accepts a comment.
func (s *Service) Accept(ctx context.Context, commentID string, source model.Source) (model.Comment, error) {
	return s.Moderate(ctx, commentID, ActionAccept, source)
}

// Reject rejects a comment.
func (s *Service) Reject(ctx context.Context, commentID string, source model.Source) (model.Comment, error) {
	return s.Moderate(ctx, commentID, ActionReject, source)
}

// Defer defers a comment.
func (s *Service) Defer(ctx context.Context, commentID string, source model.Source) (model.Comment, error) {
	return s.Moderate(ctx, commentID, ActionDefer, source)
}

// Highlight accepts and highlights a comment.
func (s *Service) Highlight(ctx context.Context, commentID string, source model.Source) (model.Comment, error) {
	return s.Moderate(ctx, commentID, ActionHighlight, source)
}

// Reset returns a comment to the unmoderated state without a decision.
func (s *Service) Reset(ctx context.Context, commentID string, source model.Source) (model.Comment, error) {
	return s.Moderate(ctx, commentID, ActionReset, source)
}
