package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/internal/domain/tags"
)

// MemoryStore implements Store with mutex-guarded maps. Every call is
// atomic, which also covers the transactional operations of the port.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	comments   map[string]model.Comment
	articles   map[string]model.Article
	categories map[string]model.Category
	scorers    []model.Scorer
	requests   []model.ScoreRequest
	tags       map[string]model.Tag // by key
	scores     []model.Score
	summaries  map[summaryKey]model.SummaryScore
	rules      []model.ModerationRule
	decisions  []model.Decision
}

type summaryKey struct {
	commentID string
	tagID     string
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the time source used for defaulted timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:        func() time.Time { return time.Now().UTC() },
		comments:   make(map[string]model.Comment),
		articles:   make(map[string]model.Article),
		categories: make(map[string]model.Category),
		tags:       make(map[string]model.Tag),
		summaries:  make(map[summaryKey]model.SummaryScore),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}

func cloneComment(c model.Comment) model.Comment {
	if c.IsAccepted != nil {
		v := *c.IsAccepted
		c.IsAccepted = &v
	}
	if c.SentForScoring != nil {
		v := *c.SentForScoring
		c.SentForScoring = &v
	}
	if c.MaxSummaryScore != nil {
		v := *c.MaxSummaryScore
		c.MaxSummaryScore = &v
	}
	return c
}

// CreateComment stores a new comment.
func (s *MemoryStore) CreateComment(_ context.Context, c model.Comment) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = newID(c.ID)
	if _, exists := s.comments[c.ID]; exists {
		return model.Comment{}, fmt.Errorf("comment %s: %w", c.ID, ErrConflict)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.comments[c.ID] = cloneComment(c)
	return cloneComment(c), nil
}

// GetComment returns a comment by id.
func (s *MemoryStore) GetComment(_ context.Context, id string) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return model.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return cloneComment(c), nil
}

// UpdateComment overwrites an existing comment.
func (s *MemoryStore) UpdateComment(_ context.Context, c model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[c.ID]; !ok {
		return fmt.Errorf("comment %s: %w", c.ID, ErrNotFound)
	}
	s.comments[c.ID] = cloneComment(c)
	return nil
}

// ListCommentsToResend returns comments that are due for another dispatch.
func (s *MemoryStore) ListCommentsToResend(_ context.Context, before time.Time, limit int) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Comment
	for _, c := range s.comments {
		if c.IsAccepted != nil || c.IsScored || c.SentForScoring == nil {
			continue
		}
		if c.SentForScoring.Before(before) {
			out = append(out, cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentForScoring.Equal(*out[j].SentForScoring) {
			return out[i].SentForScoring.Before(*out[j].SentForScoring)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateArticle stores a new article.
func (s *MemoryStore) CreateArticle(_ context.Context, a model.Article) (model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = newID(a.ID)
	if _, exists := s.articles[a.ID]; exists {
		return model.Article{}, fmt.Errorf("article %s: %w", a.ID, ErrConflict)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = s.now()
	}
	s.articles[a.ID] = a
	return a, nil
}

// GetArticle returns an article by id.
func (s *MemoryStore) GetArticle(_ context.Context, id string) (model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return model.Article{}, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// CreateCategory stores a new category.
func (s *MemoryStore) CreateCategory(_ context.Context, c model.Category) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = newID(c.ID)
	if _, exists := s.categories[c.ID]; exists {
		return model.Category{}, fmt.Errorf("category %s: %w", c.ID, ErrConflict)
	}
	s.categories[c.ID] = c
	return c, nil
}

// GetCategory returns a category by id.
func (s *MemoryStore) GetCategory(_ context.Context, id string) (model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return model.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func tally(counts *model.CommentCounts, c model.Comment) {
	counts.All++
	if c.IsModerated {
		counts.Moderated++
	} else {
		counts.Unmoderated++
	}
	if c.Accepted() {
		counts.Approved++
	}
	if c.Rejected() {
		counts.Rejected++
	}
	if c.IsDeferred {
		counts.Deferred++
	}
	if c.IsHighlighted {
		counts.Highlighted++
	}
}

// CountArticleComments tallies the moderation state of an article's comments.
func (s *MemoryStore) CountArticleComments(_ context.Context, articleID string) (model.CommentCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts model.CommentCounts
	for _, c := range s.comments {
		if c.ArticleID == articleID {
			tally(&counts, c)
		}
	}
	return counts, nil
}

// CountCategoryComments tallies the moderation state across a category.
func (s *MemoryStore) CountCategoryComments(_ context.Context, categoryID string) (model.CommentCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts model.CommentCounts
	for _, c := range s.comments {
		a, ok := s.articles[c.ArticleID]
		if ok && a.CategoryID == categoryID {
			tally(&counts, c)
		}
	}
	return counts, nil
}

// SaveArticleCounts stores denormalized counts on an article.
func (s *MemoryStore) SaveArticleCounts(_ context.Context, articleID string, counts model.CommentCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[articleID]
	if !ok {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	a.Counts = counts
	a.UpdatedAt = s.now()
	s.articles[articleID] = a
	return nil
}

// SaveCategoryCounts stores denormalized counts on a category.
func (s *MemoryStore) SaveCategoryCounts(_ context.Context, categoryID string, counts model.CommentCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[categoryID]
	if !ok {
		return fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
	}
	c.Counts = counts
	s.categories[categoryID] = c
	return nil
}

// CreateScorer stores a new scorer.
func (s *MemoryStore) CreateScorer(_ context.Context, sc model.Scorer) (model.Scorer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc.ID = newID(sc.ID)
	for _, existing := range s.scorers {
		if existing.ID == sc.ID {
			return model.Scorer{}, fmt.Errorf("scorer %s: %w", sc.ID, ErrConflict)
		}
	}
	sc.Attributes = append([]string(nil), sc.Attributes...)
	s.scorers = append(s.scorers, sc)
	return sc, nil
}

// ListActiveScorers returns active scorers in creation order.
func (s *MemoryStore) ListActiveScorers(_ context.Context) ([]model.Scorer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Scorer
	for _, sc := range s.scorers {
		if sc.IsActive {
			sc.Attributes = append([]string(nil), sc.Attributes...)
			out = append(out, sc)
		}
	}
	return out, nil
}

// ListScorers returns every scorer in creation order.
func (s *MemoryStore) ListScorers(_ context.Context) ([]model.Scorer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Scorer, 0, len(s.scorers))
	for _, sc := range s.scorers {
		sc.Attributes = append([]string(nil), sc.Attributes...)
		out = append(out, sc)
	}
	return out, nil
}

// UpdateScorer replaces a stored scorer.
func (s *MemoryStore) UpdateScorer(_ context.Context, sc model.Scorer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.scorers {
		if existing.ID == sc.ID {
			sc.Attributes = append([]string(nil), sc.Attributes...)
			s.scorers[i] = sc
			return nil
		}
	}
	return fmt.Errorf("scorer %s: %w", sc.ID, ErrNotFound)
}

// CreateScoreRequest stores a new score request.
func (s *MemoryStore) CreateScoreRequest(_ context.Context, r model.ScoreRequest) (model.ScoreRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = newID(r.ID)
	if r.SentAt.IsZero() {
		r.SentAt = s.now()
	}
	s.requests = append(s.requests, r)
	return r, nil
}

// DeleteScoreRequests removes every request for the pair.
func (s *MemoryStore) DeleteScoreRequests(_ context.Context, commentID, scorerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.requests[:0]
	for _, r := range s.requests {
		if r.CommentID == commentID && r.ScorerID == scorerID {
			continue
		}
		kept = append(kept, r)
	}
	s.requests = kept
	return nil
}

// GetScoreRequest returns a request by id.
func (s *MemoryStore) GetScoreRequest(_ context.Context, id string) (model.ScoreRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return model.ScoreRequest{}, fmt.Errorf("score request %s: %w", id, ErrNotFound)
}

// LatestScoreRequest returns the most recently sent request for the pair.
func (s *MemoryStore) LatestScoreRequest(_ context.Context, commentID, scorerID string) (model.ScoreRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.ScoreRequest
	for i := range s.requests {
		r := s.requests[i]
		if r.CommentID != commentID || r.ScorerID != scorerID {
			continue
		}
		if latest == nil || !r.SentAt.Before(latest.SentAt) {
			latest = &r
		}
	}
	if latest == nil {
		return model.ScoreRequest{}, fmt.Errorf("score request for comment %s scorer %s: %w", commentID, scorerID, ErrNotFound)
	}
	return *latest, nil
}

// ListScoreRequests returns every request for a comment.
func (s *MemoryStore) ListScoreRequests(_ context.Context, commentID string) ([]model.ScoreRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ScoreRequest
	for _, r := range s.requests {
		if r.CommentID == commentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkScoreRequestDone stamps doneAt on a request.
func (s *MemoryStore) MarkScoreRequestDone(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.requests {
		if s.requests[i].ID == id {
			done := at
			s.requests[i].DoneAt = &done
			return nil
		}
	}
	return fmt.Errorf("score request %s: %w", id, ErrNotFound)
}

// FindOrCreateTagsByKey returns one tag per key, creating missing ones.
func (s *MemoryStore) FindOrCreateTagsByKey(_ context.Context, keys []string) ([]model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Tag, 0, len(keys))
	for _, key := range keys {
		t, ok := s.tags[key]
		if !ok {
			t = model.Tag{
				ID:        uuid.NewString(),
				Key:       key,
				Label:     tags.Label(key),
				CreatedAt: s.now(),
			}
			s.tags[key] = t
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTagByKey returns the tag with the given key.
func (s *MemoryStore) GetTagByKey(_ context.Context, key string) (model.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tags[key]
	if !ok {
		return model.Tag{}, fmt.Errorf("tag %s: %w", key, ErrNotFound)
	}
	return t, nil
}

// ListTags returns every tag ordered by creation time.
func (s *MemoryStore) ListTags(_ context.Context) ([]model.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// UpdateTag overwrites an existing tag, matched by id.
func (s *MemoryStore) UpdateTag(_ context.Context, t model.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.tags {
		if existing.ID != t.ID {
			continue
		}
		if key != t.Key {
			if _, taken := s.tags[t.Key]; taken {
				return fmt.Errorf("tag %s: %w", t.Key, ErrConflict)
			}
			delete(s.tags, key)
		}
		s.tags[t.Key] = t
		return nil
	}
	return fmt.Errorf("tag %s: %w", t.ID, ErrNotFound)
}

// ReplaceScores swaps the span scores of one scorer for a comment.
func (s *MemoryStore) ReplaceScores(_ context.Context, commentID, scorerID string, scores []model.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.scores[:0]
	for _, sc := range s.scores {
		if sc.CommentID == commentID && sc.ScorerID == scorerID {
			continue
		}
		kept = append(kept, sc)
	}
	s.scores = kept
	for _, sc := range scores {
		sc.ID = newID(sc.ID)
		sc.CommentID = commentID
		sc.ScorerID = scorerID
		s.scores = append(s.scores, sc)
	}
	return nil
}

// ListScores returns every span score of a comment.
func (s *MemoryStore) ListScores(_ context.Context, commentID string) ([]model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Score
	for _, sc := range s.scores {
		if sc.CommentID == commentID {
			out = append(out, sc)
		}
	}
	return out, nil
}

// UpsertSummaryScores writes one row per (comment, tag).
func (s *MemoryStore) UpsertSummaryScores(_ context.Context, scores []model.SummaryScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range scores {
		s.summaries[summaryKey{commentID: sc.CommentID, tagID: sc.TagID}] = sc
	}
	return nil
}

// ListSummaryScores returns a comment's summary scores ordered by tag id.
func (s *MemoryStore) ListSummaryScores(_ context.Context, commentID string) ([]model.SummaryScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.SummaryScore
	for k, sc := range s.summaries {
		if k.commentID == commentID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out, nil
}

// CreateRule stores a new moderation rule.
func (s *MemoryStore) CreateRule(_ context.Context, r model.ModerationRule) (model.ModerationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = newID(r.ID)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.rules = append(s.rules, r)
	return r, nil
}

// ListRules returns every rule ordered by creation time then id.
func (s *MemoryStore) ListRules(_ context.Context) ([]model.ModerationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.ModerationRule(nil), s.rules...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RecordDecision makes d the only current decision of its comment.
func (s *MemoryStore) RecordDecision(_ context.Context, d model.Decision) (model.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.decisions {
		if s.decisions[i].CommentID == d.CommentID {
			s.decisions[i].IsCurrentDecision = false
		}
	}
	d.ID = newID(d.ID)
	d.IsCurrentDecision = true
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.decisions = append(s.decisions, d)
	return d, nil
}

// ListDecisions returns a comment's decisions, oldest first.
func (s *MemoryStore) ListDecisions(_ context.Context, commentID string) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Decision
	for _, d := range s.decisions {
		if d.CommentID == commentID {
			out = append(out, d)
		}
	}
	return out, nil
}
