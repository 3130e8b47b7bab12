package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/internal/domain/rules"
	"github.com/okian/moderator/internal/domain/state"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// ProcessRulesForComment applies every moderation rule to a comment. It
// does nothing when the comment's article has auto-moderation turned off
// or when the comment has no summary scores yet.
func (s *Service) ProcessRulesForComment(ctx context.Context, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("load comment: %w", err)
	}

	if comment.ArticleID != "" {
		article, err := s.store.GetArticle(ctx, comment.ArticleID)
		if err != nil {
			return fmt.Errorf("load article: %w", err)
		}
		if !article.IsAutoModerated {
			s.logger.Debug(ctx, "auto-moderation disabled",
				logger.String("commentID", commentID),
				logger.String("articleID", article.ID),
			)
			return nil
		}
	}

	summaries, err := s.store.ListSummaryScores(ctx, commentID)
	if err != nil {
		return fmt.Errorf("list summary scores: %w", err)
	}
	if len(summaries) == 0 {
		return nil
	}

	ruleSet, err := s.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	_, _, err = s.ResolveComment(ctx, comment, summaries, ruleSet)
	return err
}

// ResolveComment runs the rule engine over the comment's summary scores
// and applies the outcome. A nil rule set loads every rule. It returns the
// resolution and whether any rule matched.
func (s *Service) ResolveComment(
	ctx context.Context,
	comment model.Comment,
	summaries []model.SummaryScore,
	ruleSet []model.ModerationRule,
) (rules.Resolution, bool, error) {
	if ruleSet == nil {
		var err error
		if ruleSet, err = s.store.ListRules(ctx); err != nil {
			return rules.Resolution{}, false, fmt.Errorf("list rules: %w", err)
		}
	}

	in := rules.Input{
		SummaryScores:   summaries,
		MaxSummaryScore: comment.MaxSummaryScore,
		Rules:           ruleSet,
	}

	if comment.ArticleID != "" {
		article, err := s.store.GetArticle(ctx, comment.ArticleID)
		switch {
		case err == nil:
			in.CategoryID = article.CategoryID
		case !errors.Is(err, repository.ErrNotFound):
			return rules.Resolution{}, false, fmt.Errorf("load article: %w", err)
		}
	}

	summaryTag, err := s.store.GetTagByKey(ctx, model.SummaryScoreTagKey)
	switch {
	case err == nil:
		in.SummaryTag = &summaryTag
	case !errors.Is(err, repository.ErrNotFound):
		return rules.Resolution{}, false, fmt.Errorf("load summary tag: %w", err)
	}

	res, ok := rules.Resolve(in)
	if !ok {
		metrics.RecordRuleOutcome("no_match")
		return rules.Resolution{}, false, nil
	}

	bundle, _ := state.ForStatus(res.Status)
	source := res.Source()
	comment, err = s.SetCommentState(ctx, comment, source, bundle, state.AutoResolved(res.Highlighted))
	if err != nil {
		return res, true, err
	}
	if _, err := s.RecordDecision(ctx, comment, res.Status, source); err != nil {
		return res, true, err
	}

	outcome := string(res.Status)
	if res.Rule == nil {
		outcome = "no_consensus"
	}
	metrics.RecordRuleOutcome(outcome)
	s.logger.Info(ctx, "rules resolved comment",
		logger.String("commentID", comment.ID),
		logger.String("status", string(res.Status)),
		logger.String("source", string(source.Kind)),
		logger.String("ruleID", source.ID),
		logger.Bool("highlighted", res.Highlighted),
	)
	return res, true, nil
}
