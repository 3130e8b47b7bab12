package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/moderator/internal/adapters/scorer"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
)

// SubmitComment stores a new comment and schedules it for scoring.
func (s *Service) SubmitComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	created, err := s.store.CreateComment(ctx, c)
	if err != nil {
		return model.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	if err := s.EnqueueScoring(ctx, created.ID); err != nil {
		return created, err
	}
	return created, nil
}

// RegisterScorer validates and stores a scorer.
func (s *Service) RegisterScorer(ctx context.Context, sc model.Scorer) (model.Scorer, error) {
	if _, err := scorer.ParseEndpoint(sc); err != nil {
		return model.Scorer{}, err
	}
	created, err := s.store.CreateScorer(ctx, sc)
	if err != nil {
		return model.Scorer{}, fmt.Errorf("create scorer: %w", err)
	}
	s.registry.Invalidate(created.ID)
	s.logger.Info(ctx, "scorer registered",
		logger.String("scorerID", created.ID),
		logger.String("name", created.Name),
		logger.String("endpointType", string(created.EndpointType)),
		logger.Bool("active", created.IsActive),
	)
	return created, nil
}

// IncludeInSummary marks tags as part of the comment summary score,
// creating them if needed.
func (s *Service) IncludeInSummary(ctx context.Context, keys ...string) error {
	tagList, err := s.store.FindOrCreateTagsByKey(ctx, keys)
	if err != nil {
		return fmt.Errorf("find or create tags: %w", err)
	}
	for _, t := range tagList {
		if t.IsInSummaryScore {
			continue
		}
		t.IsInSummaryScore = true
		if err := s.store.UpdateTag(ctx, t); err != nil {
			return fmt.Errorf("update tag %s: %w", t.Key, err)
		}
	}
	return nil
}

// RuleSpec describes a moderation rule by tag key.
type RuleSpec struct {
	TagKey         string
	CategoryID     string
	LowerThreshold float64
	UpperThreshold float64
	Action         model.Action
}

// AddRule creates a moderation rule, creating its tag if needed.
func (s *Service) AddRule(ctx context.Context, spec RuleSpec) (model.ModerationRule, error) {
	if spec.TagKey == "" || spec.LowerThreshold > spec.UpperThreshold {
		return model.ModerationRule{}, fmt.Errorf("%w: tag %q range [%g, %g]",
			ErrInvalidRule, spec.TagKey, spec.LowerThreshold, spec.UpperThreshold)
	}
	tagList, err := s.store.FindOrCreateTagsByKey(ctx, []string{spec.TagKey})
	if err != nil {
		return model.ModerationRule{}, fmt.Errorf("find or create tag: %w", err)
	}
	rule, err := s.store.CreateRule(ctx, model.ModerationRule{
		TagID:          tagList[0].ID,
		CategoryID:     spec.CategoryID,
		LowerThreshold: spec.LowerThreshold,
		UpperThreshold: spec.UpperThreshold,
		Action:         spec.Action,
	})
	if err != nil {
		return model.ModerationRule{}, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

// EnsureScorer registers sc unless a scorer with the same name is stored.
// A stored scorer whose configuration differs is updated in place, so
// applying the same configuration twice leaves one scorer.
func (s *Service) EnsureScorer(ctx context.Context, sc model.Scorer) (model.Scorer, error) {
	if sc.Name == "" {
		return s.RegisterScorer(ctx, sc)
	}
	if _, err := scorer.ParseEndpoint(sc); err != nil {
		return model.Scorer{}, err
	}
	all, err := s.store.ListScorers(ctx)
	if err != nil {
		return model.Scorer{}, fmt.Errorf("list scorers: %w", err)
	}
	idx := slices.IndexFunc(all, func(existing model.Scorer) bool { return existing.Name == sc.Name })
	if idx < 0 {
		return s.RegisterScorer(ctx, sc)
	}

	existing := all[idx]
	sc.ID = existing.ID
	if sameScorer(existing, sc) {
		return existing, nil
	}
	if err := s.store.UpdateScorer(ctx, sc); err != nil {
		return model.Scorer{}, fmt.Errorf("update scorer: %w", err)
	}
	s.registry.Invalidate(sc.ID)
	s.logger.Info(ctx, "scorer updated",
		logger.String("scorerID", sc.ID),
		logger.String("name", sc.Name),
		logger.Bool("active", sc.IsActive),
	)
	return sc, nil
}

func sameScorer(a, b model.Scorer) bool {
	return a.IsActive == b.IsActive &&
		a.EndpointType == b.EndpointType &&
		a.Endpoint == b.Endpoint &&
		a.APIKey == b.APIKey &&
		a.UserAgent == b.UserAgent &&
		slices.Equal(a.Attributes, b.Attributes)
}

// EnsureRule adds the rule described by spec unless an identical one
// exists. It reports whether a rule was created.
func (s *Service) EnsureRule(ctx context.Context, spec RuleSpec) (model.ModerationRule, bool, error) {
	if spec.TagKey == "" || spec.LowerThreshold > spec.UpperThreshold {
		return model.ModerationRule{}, false, fmt.Errorf("%w: tag %q range [%g, %g]",
			ErrInvalidRule, spec.TagKey, spec.LowerThreshold, spec.UpperThreshold)
	}
	tagList, err := s.store.FindOrCreateTagsByKey(ctx, []string{spec.TagKey})
	if err != nil {
		return model.ModerationRule{}, false, fmt.Errorf("find or create tag: %w", err)
	}
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return model.ModerationRule{}, false, fmt.Errorf("list rules: %w", err)
	}
	for _, r := range rules {
		if r.TagID == tagList[0].ID &&
			r.CategoryID == spec.CategoryID &&
			r.LowerThreshold == spec.LowerThreshold &&
			r.UpperThreshold == spec.UpperThreshold &&
			r.Action == spec.Action {
			return r, false, nil
		}
	}
	rule, err := s.AddRule(ctx, spec)
	if err != nil {
		return model.ModerationRule{}, false, err
	}
	return rule, true, nil
}
