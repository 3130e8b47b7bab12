// Package repository defines the persistence port of the moderation
// pipeline and its in-memory and gorm-backed implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/moderator/internal/domain/model"
)

// CommentStore persists comments, articles and categories.
type CommentStore interface {
	CreateComment(ctx context.Context, c model.Comment) (model.Comment, error)
	// GetComment returns ErrNotFound for unknown ids.
	GetComment(ctx context.Context, id string) (model.Comment, error)
	// UpdateComment overwrites every column of an existing comment.
	UpdateComment(ctx context.Context, c model.Comment) error
	// ListCommentsToResend returns unresolved, unscored comments last sent
	// for scoring before the cutoff, oldest first.
	ListCommentsToResend(ctx context.Context, before time.Time, limit int) ([]model.Comment, error)

	CreateArticle(ctx context.Context, a model.Article) (model.Article, error)
	GetArticle(ctx context.Context, id string) (model.Article, error)
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
	GetCategory(ctx context.Context, id string) (model.Category, error)

	CountArticleComments(ctx context.Context, articleID string) (model.CommentCounts, error)
	CountCategoryComments(ctx context.Context, categoryID string) (model.CommentCounts, error)
	SaveArticleCounts(ctx context.Context, articleID string, counts model.CommentCounts) error
	SaveCategoryCounts(ctx context.Context, categoryID string, counts model.CommentCounts) error
}

// ScoringStore persists scorers, score requests, scores and tags.
type ScoringStore interface {
	CreateScorer(ctx context.Context, s model.Scorer) (model.Scorer, error)
	ListActiveScorers(ctx context.Context) ([]model.Scorer, error)
	// ListScorers returns every scorer, active or not, in creation order.
	ListScorers(ctx context.Context) ([]model.Scorer, error)
	UpdateScorer(ctx context.Context, s model.Scorer) error

	CreateScoreRequest(ctx context.Context, r model.ScoreRequest) (model.ScoreRequest, error)
	// DeleteScoreRequests removes every request for (commentID, scorerID).
	DeleteScoreRequests(ctx context.Context, commentID, scorerID string) error
	GetScoreRequest(ctx context.Context, id string) (model.ScoreRequest, error)
	// LatestScoreRequest returns the most recently sent request for the pair.
	LatestScoreRequest(ctx context.Context, commentID, scorerID string) (model.ScoreRequest, error)
	ListScoreRequests(ctx context.Context, commentID string) ([]model.ScoreRequest, error)
	MarkScoreRequestDone(ctx context.Context, id string, at time.Time) error

	// FindOrCreateTagsByKey returns one tag per key in key order, creating
	// missing tags with a label derived from the key.
	FindOrCreateTagsByKey(ctx context.Context, keys []string) ([]model.Tag, error)
	GetTagByKey(ctx context.Context, key string) (model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	UpdateTag(ctx context.Context, t model.Tag) error

	// ReplaceScores deletes every span score of (commentID, scorerID) and
	// inserts scores in their place.
	ReplaceScores(ctx context.Context, commentID, scorerID string, scores []model.Score) error
	ListScores(ctx context.Context, commentID string) ([]model.Score, error)

	// UpsertSummaryScores writes one row per (comment, tag) in a single
	// transaction.
	UpsertSummaryScores(ctx context.Context, scores []model.SummaryScore) error
	ListSummaryScores(ctx context.Context, commentID string) ([]model.SummaryScore, error)
}

// ModerationStore persists rules and decisions.
type ModerationStore interface {
	CreateRule(ctx context.Context, r model.ModerationRule) (model.ModerationRule, error)
	// ListRules returns every rule ordered by creation time then id.
	ListRules(ctx context.Context) ([]model.ModerationRule, error)

	// RecordDecision clears the current flag of prior decisions for the
	// comment and inserts d as the current one, atomically.
	RecordDecision(ctx context.Context, d model.Decision) (model.Decision, error)
	ListDecisions(ctx context.Context, commentID string) ([]model.Decision, error)
}

// Store is the full persistence port.
type Store interface {
	CommentStore
	ScoringStore
	ModerationStore
}
