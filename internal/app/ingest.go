package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
	"github.com/okian/moderator/pkg/metrics"
)

// IngestScore stores the scores a scorer produced for a comment. The
// scorer's previous scores for the comment are replaced, never merged.
// A delivery without a matching score request fails with ErrDataIntegrity.
func (s *Service) IngestScore(ctx context.Context, commentID, scorerID string, data model.ScoreData) error {
	req, err := s.store.LatestScoreRequest(ctx, commentID, scorerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordIngestError("unknown_request")
			return fmt.Errorf("%w: comment %s scorer %s", ErrDataIntegrity, commentID, scorerID)
		}
		return fmt.Errorf("find score request: %w", err)
	}

	if err := s.ingest(ctx, req, data); err != nil {
		metrics.RecordIngestError("store")
		return err
	}
	metrics.RecordScoreIngested(scorerID)

	if s.isDispatching(commentID) {
		return nil
	}
	if _, err := s.CheckScoringDone(ctx, commentID); err != nil {
		return fmt.Errorf("check scoring done: %w", err)
	}
	return nil
}

// IngestDelivery ingests a webhook delivery addressed to a score request id.
func (s *Service) IngestDelivery(ctx context.Context, requestID string, data model.ScoreData) error {
	req, err := s.store.GetScoreRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordIngestError("unknown_request")
			return fmt.Errorf("%w: request %s", ErrDataIntegrity, requestID)
		}
		return fmt.Errorf("find score request: %w", err)
	}
	return s.IngestScore(ctx, req.CommentID, req.ScorerID, data)
}

func (s *Service) ingest(ctx context.Context, req model.ScoreRequest, data model.ScoreData) error {
	tagList, err := s.store.FindOrCreateTagsByKey(ctx, data.TagKeys())
	if err != nil {
		return fmt.Errorf("find or create tags: %w", err)
	}
	byKey := make(map[string]model.Tag, len(tagList))
	for _, t := range tagList {
		byKey[t.Key] = t
	}

	if err := s.store.ReplaceScores(ctx, req.CommentID, req.ScorerID, spanScores(req, data, byKey)); err != nil {
		return fmt.Errorf("replace scores: %w", err)
	}

	if summaries := summaryScores(req.CommentID, data, byKey); len(summaries) > 0 {
		if err := s.store.UpsertSummaryScores(ctx, summaries); err != nil {
			return fmt.Errorf("upsert summary scores: %w", err)
		}
	}

	if err := s.recomputeMaxSummaryScore(ctx, req.CommentID); err != nil {
		return err
	}

	if err := s.store.MarkScoreRequestDone(ctx, req.ID, s.now()); err != nil {
		return fmt.Errorf("mark score request done: %w", err)
	}

	s.logger.Debug(ctx, "scores ingested",
		logger.String("commentID", req.CommentID),
		logger.String("scorerID", req.ScorerID),
		logger.String("requestID", req.ID),
		logger.Int("tags", len(tagList)),
	)
	return nil
}

func spanScores(req model.ScoreRequest, data model.ScoreData, byKey map[string]model.Tag) []model.Score {
	keys := make([]string, 0, len(data.Scores))
	for k := range data.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []model.Score
	for _, key := range keys {
		for _, span := range data.Scores[key] {
			out = append(out, model.Score{
				CommentID: req.CommentID,
				ScorerID:  req.ScorerID,
				TagID:     byKey[key].ID,
				Score:     span.Score,
				Begin:     span.Begin,
				End:       span.End,
			})
		}
	}
	return out
}

func summaryScores(commentID string, data model.ScoreData, byKey map[string]model.Tag) []model.SummaryScore {
	out := make([]model.SummaryScore, 0, len(data.SummaryScores))
	for key, score := range data.SummaryScores {
		out = append(out, model.SummaryScore{
			CommentID: commentID,
			TagID:     byKey[key].ID,
			Score:     score,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out
}

// recomputeMaxSummaryScore rescans every summary score of the comment and
// keeps the highest among tags included in the summary. Ties keep the
// first one encountered.
func (s *Service) recomputeMaxSummaryScore(ctx context.Context, commentID string) error {
	summaries, err := s.store.ListSummaryScores(ctx, commentID)
	if err != nil {
		return fmt.Errorf("list summary scores: %w", err)
	}
	tagList, err := s.store.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	included := make(map[string]bool, len(tagList))
	for _, t := range tagList {
		included[t.ID] = t.IsInSummaryScore
	}

	var (
		maxScore *float64
		maxTagID string
	)
	for _, ss := range summaries {
		if !included[ss.TagID] {
			continue
		}
		if maxScore == nil || ss.Score > *maxScore {
			v := ss.Score
			maxScore = &v
			maxTagID = ss.TagID
		}
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("load comment: %w", err)
	}
	comment.MaxSummaryScore = maxScore
	comment.MaxSummaryScoreTagID = maxTagID
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return fmt.Errorf("save max summary score: %w", err)
	}
	return nil
}
