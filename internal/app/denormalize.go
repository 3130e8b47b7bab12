package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/domain/model"
)

// Denormalizer keeps the moderation counts of articles and categories in
// step with their comments.
type Denormalizer interface {
	DenormalizeCountsForComment(ctx context.Context, c model.Comment) error
	DenormalizeCommentCountsForArticle(ctx context.Context, articleID string) error
}

// StoreDenormalizer recounts comments through the store.
type StoreDenormalizer struct {
	store repository.CommentStore
}

// NewStoreDenormalizer creates a denormalizer backed by store.
func NewStoreDenormalizer(store repository.CommentStore) *StoreDenormalizer {
	return &StoreDenormalizer{store: store}
}

// DenormalizeCountsForComment recounts the article and category of c.
// Comments without an article have nothing to recount.
func (d *StoreDenormalizer) DenormalizeCountsForComment(ctx context.Context, c model.Comment) error {
	if c.ArticleID == "" {
		return nil
	}
	return d.DenormalizeCommentCountsForArticle(ctx, c.ArticleID)
}

// DenormalizeCommentCountsForArticle recounts an article and its category.
// An article or category without a stored row has nothing to recount.
func (d *StoreDenormalizer) DenormalizeCommentCountsForArticle(ctx context.Context, articleID string) error {
	counts, err := d.store.CountArticleComments(ctx, articleID)
	if err != nil {
		return fmt.Errorf("count article comments: %w", err)
	}
	if err := d.store.SaveArticleCounts(ctx, articleID, counts); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("save article counts: %w", err)
	}

	article, err := d.store.GetArticle(ctx, articleID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load article: %w", err)
	}
	if article.CategoryID == "" {
		return nil
	}

	counts, err = d.store.CountCategoryComments(ctx, article.CategoryID)
	if err != nil {
		return fmt.Errorf("count category comments: %w", err)
	}
	if err := d.store.SaveCategoryCounts(ctx, article.CategoryID, counts); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("save category counts: %w", err)
	}
	return nil
}
