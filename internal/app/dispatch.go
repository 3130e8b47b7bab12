package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/adapters/scorer"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// SendForScoring dispatches a comment to every active scorer, one after
// the other. A failing scorer is logged and skipped. Once the loop is done
// completion is checked, which finalizes comments whose scorers all
// answered synchronously.
func (s *Service) SendForScoring(ctx context.Context, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("load comment: %w", err)
	}
	scorers, err := s.store.ListActiveScorers(ctx)
	if err != nil {
		return fmt.Errorf("list active scorers: %w", err)
	}
	if len(scorers) == 0 {
		s.logger.Debug(ctx, "no active scorers", logger.String("commentID", commentID))
		return nil
	}

	in, err := s.scorerInput(ctx, comment)
	if err != nil {
		return err
	}

	s.beginDispatch(commentID)
	for _, sc := range scorers {
		if err := s.sendToScorer(ctx, in, sc); err != nil {
			metrics.RecordErrorByComponent("dispatch", dispatchOutcome(err))
			s.logger.Warn(ctx, "dispatch to scorer failed",
				logger.String("commentID", commentID),
				logger.String("scorerID", sc.ID),
				logger.Error(err),
			)
		}
	}
	s.endDispatch(commentID)

	if _, err := s.CheckScoringDone(ctx, commentID); err != nil {
		return fmt.Errorf("check scoring done: %w", err)
	}
	return nil
}

// SendToScorer supersedes any earlier request of the comment to sc and
// dispatches it again.
func (s *Service) SendToScorer(ctx context.Context, comment model.Comment, sc model.Scorer) error {
	in, err := s.scorerInput(ctx, comment)
	if err != nil {
		return err
	}
	return s.sendToScorer(ctx, in, sc)
}

func (s *Service) sendToScorer(ctx context.Context, in scorer.Input, sc model.Scorer) error {
	commentID := in.Comment.ID
	if err := s.store.DeleteScoreRequests(ctx, commentID, sc.ID); err != nil {
		return fmt.Errorf("delete stale score requests: %w", err)
	}
	req, err := s.store.CreateScoreRequest(ctx, model.ScoreRequest{
		CommentID: commentID,
		ScorerID:  sc.ID,
		SentAt:    s.now(),
	})
	if err != nil {
		return fmt.Errorf("create score request: %w", err)
	}

	shim, err := s.registry.Shim(sc)
	if err != nil {
		metrics.RecordScorerRequest(sc.ID, dispatchOutcome(err), 0)
		return fmt.Errorf("scorer %s: %w", sc.ID, err)
	}

	start := time.Now()
	err = shim.SendToScorer(ctx, in, req.ID)
	metrics.RecordScorerRequest(sc.ID, dispatchOutcome(err), time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("scorer %s: %w", sc.ID, err)
	}

	s.logger.Debug(ctx, "comment sent to scorer",
		logger.String("commentID", commentID),
		logger.String("scorerID", sc.ID),
		logger.String("requestID", req.ID),
	)
	return nil
}

func (s *Service) beginDispatch(commentID string) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	s.dispatching[commentID]++
}

func (s *Service) endDispatch(commentID string) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if s.dispatching[commentID] <= 1 {
		delete(s.dispatching, commentID)
		return
	}
	s.dispatching[commentID]--
}

func (s *Service) isDispatching(commentID string) bool {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	return s.dispatching[commentID] > 0
}

// scorerInput loads the context a shim sends along with the comment.
func (s *Service) scorerInput(ctx context.Context, comment model.Comment) (scorer.Input, error) {
	in := scorer.Input{Comment: comment}
	if comment.ArticleID != "" {
		article, err := s.store.GetArticle(ctx, comment.ArticleID)
		switch {
		case err == nil:
			in.Article = &article
		case !errors.Is(err, repository.ErrNotFound):
			return scorer.Input{}, fmt.Errorf("load article: %w", err)
		}
	}
	if comment.ReplyToID != "" {
		parent, err := s.store.GetComment(ctx, comment.ReplyToID)
		switch {
		case err == nil:
			in.ReplyTo = &parent
		case !errors.Is(err, repository.ErrNotFound):
			return scorer.Input{}, fmt.Errorf("load reply-to comment: %w", err)
		}
	}
	return in, nil
}

func dispatchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, scorer.ErrConfiguration):
		return "configuration"
	case errors.Is(err, scorer.ErrTransient):
		return "transient"
	case errors.Is(err, scorer.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrDataIntegrity):
		return "data_integrity"
	default:
		return "error"
	}
}
