package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/internal/domain/tags"
	"github.com/okian/moderator/pkg/logger"
)

// GormStore implements Store on a gorm connection.
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
	now    func() time.Time
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps db. A nil log discards repository errors.
func NewGormStore(db *gorm.DB, log logger.Logger) *GormStore {
	if log == nil {
		log = logger.Nop()
	}
	return &GormStore{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates every table used by the store.
func (r *GormStore) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return r.logError(ctx, "repository_migrate_failed", err)
	}
	return nil
}

func (r *GormStore) logError(ctx context.Context, event string, err error, fields ...logger.Field) error {
	fields = append(fields, logger.String("event", event), logger.Error(err))
	r.logger.Error(ctx, "repository operation failed", fields...)
	return err
}

func (r *GormStore) mapCreateError(ctx context.Context, event, entity, id string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrConflict)
	}
	return r.logError(ctx, event, err, logger.String("id", id))
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// CreateComment stores a new comment.
func (r *GormStore) CreateComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	row := commentFromDomain(c)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Comment{}, r.mapCreateError(ctx, "repository_create_comment_failed", "comment", c.ID, err)
	}
	return row.toDomain(), nil
}

// GetComment returns a comment by id.
func (r *GormStore) GetComment(ctx context.Context, id string) (model.Comment, error) {
	var row commentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if nf := notFound("comment", id, err); nf != nil {
			return model.Comment{}, nf
		}
		return model.Comment{}, r.logError(ctx, "repository_get_comment_failed", err, logger.String("id", id))
	}
	return row.toDomain(), nil
}

// UpdateComment overwrites every column of an existing comment.
func (r *GormStore) UpdateComment(ctx context.Context, c model.Comment) error {
	row := commentFromDomain(c)
	res := r.db.WithContext(ctx).Model(&commentModel{}).Where("id = ?", c.ID).Updates(row.assignments())
	if res.Error != nil {
		return r.logError(ctx, "repository_update_comment_failed", res.Error, logger.String("id", c.ID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("comment %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// ListCommentsToResend returns comments that are due for another dispatch.
func (r *GormStore) ListCommentsToResend(ctx context.Context, before time.Time, limit int) ([]model.Comment, error) {
	tx := r.db.WithContext(ctx).
		Where("is_accepted IS NULL").
		Where("is_scored = ?", false).
		Where("sent_for_scoring IS NOT NULL AND sent_for_scoring < ?", before.UTC()).
		Order("sent_for_scoring ASC, id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []commentModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_resend_failed", err)
	}
	out := make([]model.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CreateArticle stores a new article.
func (r *GormStore) CreateArticle(ctx context.Context, a model.Article) (model.Article, error) {
	a.ID = newID(a.ID)
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = r.now()
	}
	row := articleFromDomain(a)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Article{}, r.mapCreateError(ctx, "repository_create_article_failed", "article", a.ID, err)
	}
	return row.toDomain(), nil
}

// GetArticle returns an article by id.
func (r *GormStore) GetArticle(ctx context.Context, id string) (model.Article, error) {
	var row articleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if nf := notFound("article", id, err); nf != nil {
			return model.Article{}, nf
		}
		return model.Article{}, r.logError(ctx, "repository_get_article_failed", err, logger.String("id", id))
	}
	return row.toDomain(), nil
}

// CreateCategory stores a new category.
func (r *GormStore) CreateCategory(ctx context.Context, c model.Category) (model.Category, error) {
	c.ID = newID(c.ID)
	row := categoryModel{ID: c.ID, Label: c.Label, Counts: countsFromDomain(c.Counts)}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Category{}, r.mapCreateError(ctx, "repository_create_category_failed", "category", c.ID, err)
	}
	return c, nil
}

// GetCategory returns a category by id.
func (r *GormStore) GetCategory(ctx context.Context, id string) (model.Category, error) {
	var row categoryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if nf := notFound("category", id, err); nf != nil {
			return model.Category{}, nf
		}
		return model.Category{}, r.logError(ctx, "repository_get_category_failed", err, logger.String("id", id))
	}
	return model.Category{ID: row.ID, Label: row.Label, Counts: row.Counts.toDomain()}, nil
}

type countQuery struct {
	dst  *int64
	cond func(*gorm.DB) *gorm.DB
}

func (r *GormStore) countComments(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (model.CommentCounts, error) {
	var counts model.CommentCounts
	queries := []countQuery{
		{&counts.All, func(tx *gorm.DB) *gorm.DB { return tx }},
		{&counts.Unmoderated, func(tx *gorm.DB) *gorm.DB { return tx.Where("is_moderated = ?", false) }},
		{&counts.Moderated, func(tx *gorm.DB) *gorm.DB { return tx.Where("is_moderated = ?", true) }},
		{&counts.Approved, func(tx *gorm.DB) *gorm.DB { return tx.Where("is_accepted = ?", true) }},
		{&counts.Rejected, func(tx *gorm.DB) *gorm.DB { return tx.Where("is_accepted = ?", false) }},
		{&counts.Deferred, func(tx *gorm.DB) *gorm.DB { return tx.Where("is_deferred = ?", true) }},
		{&counts.Highlighted, func(tx *gorm.DB) *gorm.DB { return tx.Where("is_highlighted = ?", true) }},
	}
	for _, q := range queries {
		tx := q.cond(scope(r.db.WithContext(ctx).Model(&commentModel{})))
		if err := tx.Count(q.dst).Error; err != nil {
			return model.CommentCounts{}, err
		}
	}
	return counts, nil
}

// CountArticleComments tallies the moderation state of an article's comments.
func (r *GormStore) CountArticleComments(ctx context.Context, articleID string) (model.CommentCounts, error) {
	counts, err := r.countComments(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("article_id = ?", articleID)
	})
	if err != nil {
		return model.CommentCounts{}, r.logError(ctx, "repository_count_article_failed", err, logger.String("articleID", articleID))
	}
	return counts, nil
}

// CountCategoryComments tallies the moderation state across a category.
func (r *GormStore) CountCategoryComments(ctx context.Context, categoryID string) (model.CommentCounts, error) {
	counts, err := r.countComments(ctx, func(tx *gorm.DB) *gorm.DB {
		articles := r.db.WithContext(ctx).Model(&articleModel{}).Select("id").Where("category_id = ?", categoryID)
		return tx.Where("article_id IN (?)", articles)
	})
	if err != nil {
		return model.CommentCounts{}, r.logError(ctx, "repository_count_category_failed", err, logger.String("categoryID", categoryID))
	}
	return counts, nil
}

// SaveArticleCounts stores denormalized counts on an article.
func (r *GormStore) SaveArticleCounts(ctx context.Context, articleID string, counts model.CommentCounts) error {
	updates := countsFromDomain(counts).assignments()
	updates["updated_at"] = r.now()
	res := r.db.WithContext(ctx).Model(&articleModel{}).Where("id = ?", articleID).Updates(updates)
	if res.Error != nil {
		return r.logError(ctx, "repository_save_article_counts_failed", res.Error, logger.String("articleID", articleID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	return nil
}

// SaveCategoryCounts stores denormalized counts on a category.
func (r *GormStore) SaveCategoryCounts(ctx context.Context, categoryID string, counts model.CommentCounts) error {
	res := r.db.WithContext(ctx).Model(&categoryModel{}).Where("id = ?", categoryID).Updates(countsFromDomain(counts).assignments())
	if res.Error != nil {
		return r.logError(ctx, "repository_save_category_counts_failed", res.Error, logger.String("categoryID", categoryID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
	}
	return nil
}

// CreateScorer stores a new scorer.
func (r *GormStore) CreateScorer(ctx context.Context, s model.Scorer) (model.Scorer, error) {
	s.ID = newID(s.ID)
	row := scorerFromDomain(s)
	row.Seq = r.now().UnixNano()
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Scorer{}, r.mapCreateError(ctx, "repository_create_scorer_failed", "scorer", s.ID, err)
	}
	return row.toDomain(), nil
}

// ListActiveScorers returns active scorers in creation order.
func (r *GormStore) ListActiveScorers(ctx context.Context) ([]model.Scorer, error) {
	var rows []scorerModel
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("seq ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_scorers_failed", err)
	}
	out := make([]model.Scorer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ListScorers returns every scorer in creation order.
func (r *GormStore) ListScorers(ctx context.Context) ([]model.Scorer, error) {
	var rows []scorerModel
	if err := r.db.WithContext(ctx).Order("seq ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_scorers_failed", err)
	}
	out := make([]model.Scorer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// UpdateScorer rewrites the configuration of a stored scorer.
func (r *GormStore) UpdateScorer(ctx context.Context, s model.Scorer) error {
	row := scorerFromDomain(s)
	res := r.db.WithContext(ctx).Model(&scorerModel{}).Where("id = ?", s.ID).Updates(map[string]any{
		"name":          row.Name,
		"is_active":     row.IsActive,
		"endpoint_type": row.EndpointType,
		"endpoint":      row.Endpoint,
		"api_key":       row.APIKey,
		"attributes":    row.Attributes,
		"user_agent":    row.UserAgent,
	})
	if res.Error != nil {
		return r.logError(ctx, "repository_update_scorer_failed", res.Error, logger.String("id", s.ID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("scorer %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// CreateScoreRequest stores a new score request.
func (r *GormStore) CreateScoreRequest(ctx context.Context, req model.ScoreRequest) (model.ScoreRequest, error) {
	req.ID = newID(req.ID)
	if req.SentAt.IsZero() {
		req.SentAt = r.now()
	}
	row := scoreRequestModel{
		ID:        req.ID,
		CommentID: req.CommentID,
		ScorerID:  req.ScorerID,
		SentAt:    req.SentAt.UTC(),
		DoneAt:    utcPtr(req.DoneAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.ScoreRequest{}, r.mapCreateError(ctx, "repository_create_score_request_failed", "score request", req.ID, err)
	}
	return row.toDomain(), nil
}

// DeleteScoreRequests removes every request for the pair.
func (r *GormStore) DeleteScoreRequests(ctx context.Context, commentID, scorerID string) error {
	err := r.db.WithContext(ctx).
		Where("comment_id = ? AND scorer_id = ?", commentID, scorerID).
		Delete(&scoreRequestModel{}).Error
	if err != nil {
		return r.logError(ctx, "repository_delete_score_requests_failed", err,
			logger.String("commentID", commentID),
			logger.String("scorerID", scorerID),
		)
	}
	return nil
}

// GetScoreRequest returns a request by id.
func (r *GormStore) GetScoreRequest(ctx context.Context, id string) (model.ScoreRequest, error) {
	var row scoreRequestModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if nf := notFound("score request", id, err); nf != nil {
			return model.ScoreRequest{}, nf
		}
		return model.ScoreRequest{}, r.logError(ctx, "repository_get_score_request_failed", err, logger.String("id", id))
	}
	return row.toDomain(), nil
}

// LatestScoreRequest returns the most recently sent request for the pair.
func (r *GormStore) LatestScoreRequest(ctx context.Context, commentID, scorerID string) (model.ScoreRequest, error) {
	var row scoreRequestModel
	err := r.db.WithContext(ctx).
		Where("comment_id = ? AND scorer_id = ?", commentID, scorerID).
		Order("sent_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ScoreRequest{}, fmt.Errorf("score request for comment %s scorer %s: %w", commentID, scorerID, ErrNotFound)
		}
		return model.ScoreRequest{}, r.logError(ctx, "repository_latest_score_request_failed", err,
			logger.String("commentID", commentID),
			logger.String("scorerID", scorerID),
		)
	}
	return row.toDomain(), nil
}

// ListScoreRequests returns every request for a comment.
func (r *GormStore) ListScoreRequests(ctx context.Context, commentID string) ([]model.ScoreRequest, error) {
	var rows []scoreRequestModel
	if err := r.db.WithContext(ctx).Where("comment_id = ?", commentID).Order("sent_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_score_requests_failed", err, logger.String("commentID", commentID))
	}
	out := make([]model.ScoreRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// MarkScoreRequestDone stamps doneAt on a request.
func (r *GormStore) MarkScoreRequestDone(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&scoreRequestModel{}).Where("id = ?", id).Update("done_at", at.UTC())
	if res.Error != nil {
		return r.logError(ctx, "repository_mark_done_failed", res.Error, logger.String("id", id))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("score request %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindOrCreateTagsByKey returns one tag per key, creating missing ones.
func (r *GormStore) FindOrCreateTagsByKey(ctx context.Context, keys []string) ([]model.Tag, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var rows []tagModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			row := tagModel{
				ID:        uuid.NewString(),
				Key:       key,
				Label:     tags.Label(key),
				CreatedAt: r.now(),
			}
			create := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tag_key"}},
				DoNothing: true,
			}).Create(&row)
			if create.Error != nil {
				return create.Error
			}
		}
		return tx.Where("tag_key IN ?", keys).Find(&rows).Error
	})
	if err != nil {
		return nil, r.logError(ctx, "repository_find_or_create_tags_failed", err, logger.Strings("keys", keys))
	}

	byKey := make(map[string]model.Tag, len(rows))
	for _, row := range rows {
		byKey[row.Key] = row.toDomain()
	}
	out := make([]model.Tag, 0, len(keys))
	for _, key := range keys {
		t, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("tag %s: %w", key, ErrNotFound)
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTagByKey returns the tag with the given key.
func (r *GormStore) GetTagByKey(ctx context.Context, key string) (model.Tag, error) {
	var row tagModel
	if err := r.db.WithContext(ctx).Where("tag_key = ?", key).First(&row).Error; err != nil {
		if nf := notFound("tag", key, err); nf != nil {
			return model.Tag{}, nf
		}
		return model.Tag{}, r.logError(ctx, "repository_get_tag_failed", err, logger.String("key", key))
	}
	return row.toDomain(), nil
}

// ListTags returns every tag ordered by creation time.
func (r *GormStore) ListTags(ctx context.Context) ([]model.Tag, error) {
	var rows []tagModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, tag_key ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_tags_failed", err)
	}
	out := make([]model.Tag, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// UpdateTag overwrites an existing tag, matched by id.
func (r *GormStore) UpdateTag(ctx context.Context, t model.Tag) error {
	res := r.db.WithContext(ctx).Model(&tagModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"tag_key":             t.Key,
		"label":               t.Label,
		"is_in_summary_score": t.IsInSummaryScore,
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("tag %s: %w", t.Key, ErrConflict)
		}
		return r.logError(ctx, "repository_update_tag_failed", res.Error, logger.String("id", t.ID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tag %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// ReplaceScores swaps the span scores of one scorer for a comment.
func (r *GormStore) ReplaceScores(ctx context.Context, commentID, scorerID string, scores []model.Score) error {
	rows := make([]scoreModel, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, scoreModel{
			ID:        newID(s.ID),
			CommentID: commentID,
			ScorerID:  scorerID,
			TagID:     s.TagID,
			Score:     s.Score,
			Begin:     s.Begin,
			End:       s.End,
		})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ? AND scorer_id = ?", commentID, scorerID).Delete(&scoreModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
	if err != nil {
		return r.logError(ctx, "repository_replace_scores_failed", err,
			logger.String("commentID", commentID),
			logger.String("scorerID", scorerID),
		)
	}
	return nil
}

// ListScores returns every span score of a comment.
func (r *GormStore) ListScores(ctx context.Context, commentID string) ([]model.Score, error) {
	var rows []scoreModel
	if err := r.db.WithContext(ctx).Where("comment_id = ?", commentID).Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_scores_failed", err, logger.String("commentID", commentID))
	}
	out := make([]model.Score, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// UpsertSummaryScores writes one row per (comment, tag) in one transaction.
func (r *GormStore) UpsertSummaryScores(ctx context.Context, scores []model.SummaryScore) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]summaryScoreModel, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, summaryScoreModel{CommentID: s.CommentID, TagID: s.TagID, Score: s.Score})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}, {Name: "tag_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return r.logError(ctx, "repository_upsert_summary_scores_failed", err)
	}
	return nil
}

// ListSummaryScores returns a comment's summary scores ordered by tag id.
func (r *GormStore) ListSummaryScores(ctx context.Context, commentID string) ([]model.SummaryScore, error) {
	var rows []summaryScoreModel
	if err := r.db.WithContext(ctx).Where("comment_id = ?", commentID).Order("tag_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_summary_scores_failed", err, logger.String("commentID", commentID))
	}
	out := make([]model.SummaryScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.SummaryScore{CommentID: row.CommentID, TagID: row.TagID, Score: row.Score})
	}
	return out, nil
}

// CreateRule stores a new moderation rule.
func (r *GormStore) CreateRule(ctx context.Context, rule model.ModerationRule) (model.ModerationRule, error) {
	rule.ID = newID(rule.ID)
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = r.now()
	}
	row := ruleModel{
		ID:             rule.ID,
		TagID:          rule.TagID,
		CategoryID:     rule.CategoryID,
		LowerThreshold: rule.LowerThreshold,
		UpperThreshold: rule.UpperThreshold,
		Action:         string(rule.Action),
		CreatedAt:      rule.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.ModerationRule{}, r.mapCreateError(ctx, "repository_create_rule_failed", "rule", rule.ID, err)
	}
	return row.toDomain(), nil
}

// ListRules returns every rule ordered by creation time then id.
func (r *GormStore) ListRules(ctx context.Context) ([]model.ModerationRule, error) {
	var rows []ruleModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_rules_failed", err)
	}
	out := make([]model.ModerationRule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// RecordDecision makes d the only current decision of its comment.
func (r *GormStore) RecordDecision(ctx context.Context, d model.Decision) (model.Decision, error) {
	d.ID = newID(d.ID)
	d.IsCurrentDecision = true
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	row := decisionModel{
		ID:                d.ID,
		CommentID:         d.CommentID,
		Status:            string(d.Status),
		SourceKind:        string(d.Source.Kind),
		SourceID:          d.Source.ID,
		IsCurrentDecision: true,
		CreatedAt:         d.CreatedAt.UTC(),
		Seq:               r.now().UnixNano(),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&decisionModel{}).
			Where("comment_id = ? AND is_current_decision = ?", d.CommentID, true).
			Update("is_current_decision", false).Error
		if err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return model.Decision{}, r.mapCreateError(ctx, "repository_record_decision_failed", "decision", d.ID, err)
	}
	return row.toDomain(), nil
}

// ListDecisions returns a comment's decisions, oldest first.
func (r *GormStore) ListDecisions(ctx context.Context, commentID string) ([]model.Decision, error) {
	var rows []decisionModel
	if err := r.db.WithContext(ctx).Where("comment_id = ?", commentID).Order("created_at ASC, seq ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(ctx, "repository_list_decisions_failed", err, logger.String("commentID", commentID))
	}
	out := make([]model.Decision, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
