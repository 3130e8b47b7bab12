package repository

import (
	"strings"
	"time"

	"github.com/okian/moderator/internal/domain/model"
)

type countsModel struct {
	All         int64 `gorm:"column:all_count;not null;default:0"`
	Unmoderated int64 `gorm:"column:unmoderated_count;not null;default:0"`
	Moderated   int64 `gorm:"column:moderated_count;not null;default:0"`
	Approved    int64 `gorm:"column:approved_count;not null;default:0"`
	Rejected    int64 `gorm:"column:rejected_count;not null;default:0"`
	Deferred    int64 `gorm:"column:deferred_count;not null;default:0"`
	Highlighted int64 `gorm:"column:highlighted_count;not null;default:0"`
}

func countsFromDomain(c model.CommentCounts) countsModel {
	return countsModel(c)
}

func (c countsModel) toDomain() model.CommentCounts {
	return model.CommentCounts(c)
}

func (c countsModel) assignments() map[string]any {
	return map[string]any{
		"all_count":         c.All,
		"unmoderated_count": c.Unmoderated,
		"moderated_count":   c.Moderated,
		"approved_count":    c.Approved,
		"rejected_count":    c.Rejected,
		"deferred_count":    c.Deferred,
		"highlighted_count": c.Highlighted,
	}
}

type commentModel struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	ArticleID            string     `gorm:"column:article_id;index"`
	ReplyToID            string     `gorm:"column:reply_to_id"`
	AuthorID             string     `gorm:"column:author_id"`
	Text                 string     `gorm:"column:text"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
	IsModerated          bool       `gorm:"column:is_moderated;not null;default:false"`
	IsAccepted           *bool      `gorm:"column:is_accepted"`
	IsDeferred           bool       `gorm:"column:is_deferred;not null;default:false"`
	IsHighlighted        bool       `gorm:"column:is_highlighted;not null;default:false"`
	IsAutoResolved       bool       `gorm:"column:is_auto_resolved;not null;default:false"`
	IsBatchResolved      bool       `gorm:"column:is_batch_resolved;not null;default:false"`
	IsScored             bool       `gorm:"column:is_scored;not null;default:false"`
	SentForScoring       *time.Time `gorm:"column:sent_for_scoring;index"`
	MaxSummaryScore      *float64   `gorm:"column:max_summary_score"`
	MaxSummaryScoreTagID string     `gorm:"column:max_summary_score_tag_id"`
}

func (commentModel) TableName() string { return "comments" }

func commentFromDomain(c model.Comment) commentModel {
	return commentModel{
		ID:                   c.ID,
		ArticleID:            c.ArticleID,
		ReplyToID:            c.ReplyToID,
		AuthorID:             c.AuthorID,
		Text:                 c.Text,
		CreatedAt:            c.CreatedAt.UTC(),
		UpdatedAt:            c.UpdatedAt.UTC(),
		IsModerated:          c.IsModerated,
		IsAccepted:           c.IsAccepted,
		IsDeferred:           c.IsDeferred,
		IsHighlighted:        c.IsHighlighted,
		IsAutoResolved:       c.IsAutoResolved,
		IsBatchResolved:      c.IsBatchResolved,
		IsScored:             c.IsScored,
		SentForScoring:       utcPtr(c.SentForScoring),
		MaxSummaryScore:      c.MaxSummaryScore,
		MaxSummaryScoreTagID: c.MaxSummaryScoreTagID,
	}
}

func (m commentModel) toDomain() model.Comment {
	return model.Comment{
		ID:                   m.ID,
		ArticleID:            m.ArticleID,
		ReplyToID:            m.ReplyToID,
		AuthorID:             m.AuthorID,
		Text:                 m.Text,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
		IsModerated:          m.IsModerated,
		IsAccepted:           m.IsAccepted,
		IsDeferred:           m.IsDeferred,
		IsHighlighted:        m.IsHighlighted,
		IsAutoResolved:       m.IsAutoResolved,
		IsBatchResolved:      m.IsBatchResolved,
		IsScored:             m.IsScored,
		SentForScoring:       utcPtr(m.SentForScoring),
		MaxSummaryScore:      m.MaxSummaryScore,
		MaxSummaryScoreTagID: m.MaxSummaryScoreTagID,
	}
}

func (m commentModel) assignments() map[string]any {
	return map[string]any{
		"article_id":               m.ArticleID,
		"reply_to_id":              m.ReplyToID,
		"author_id":                m.AuthorID,
		"text":                     m.Text,
		"created_at":               m.CreatedAt,
		"updated_at":               m.UpdatedAt,
		"is_moderated":             m.IsModerated,
		"is_accepted":              m.IsAccepted,
		"is_deferred":              m.IsDeferred,
		"is_highlighted":           m.IsHighlighted,
		"is_auto_resolved":         m.IsAutoResolved,
		"is_batch_resolved":        m.IsBatchResolved,
		"is_scored":                m.IsScored,
		"sent_for_scoring":         m.SentForScoring,
		"max_summary_score":        m.MaxSummaryScore,
		"max_summary_score_tag_id": m.MaxSummaryScoreTagID,
	}
}

type articleModel struct {
	ID              string      `gorm:"column:id;primaryKey"`
	CategoryID      string      `gorm:"column:category_id;index"`
	Title           string      `gorm:"column:title"`
	Text            string      `gorm:"column:text"`
	IsAutoModerated bool        `gorm:"column:is_auto_moderated;not null;default:false"`
	Counts          countsModel `gorm:"embedded"`
	UpdatedAt       time.Time   `gorm:"column:updated_at"`
}

func (articleModel) TableName() string { return "articles" }

func articleFromDomain(a model.Article) articleModel {
	return articleModel{
		ID:              a.ID,
		CategoryID:      a.CategoryID,
		Title:           a.Title,
		Text:            a.Text,
		IsAutoModerated: a.IsAutoModerated,
		Counts:          countsFromDomain(a.Counts),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
}

func (m articleModel) toDomain() model.Article {
	return model.Article{
		ID:              m.ID,
		CategoryID:      m.CategoryID,
		Title:           m.Title,
		Text:            m.Text,
		IsAutoModerated: m.IsAutoModerated,
		Counts:          m.Counts.toDomain(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type categoryModel struct {
	ID     string      `gorm:"column:id;primaryKey"`
	Label  string      `gorm:"column:label"`
	Counts countsModel `gorm:"embedded"`
}

func (categoryModel) TableName() string { return "categories" }

type scorerModel struct {
	ID           string `gorm:"column:id;primaryKey"`
	Name         string `gorm:"column:name"`
	IsActive     bool   `gorm:"column:is_active;not null;index"`
	EndpointType string `gorm:"column:endpoint_type"`
	Endpoint     string `gorm:"column:endpoint"`
	APIKey       string `gorm:"column:api_key"`
	Attributes   string `gorm:"column:attributes"`
	UserAgent    string `gorm:"column:user_agent"`
	Seq          int64  `gorm:"column:seq;index"`
}

func (scorerModel) TableName() string { return "scorers" }

func scorerFromDomain(s model.Scorer) scorerModel {
	return scorerModel{
		ID:           s.ID,
		Name:         s.Name,
		IsActive:     s.IsActive,
		EndpointType: string(s.EndpointType),
		Endpoint:     s.Endpoint,
		APIKey:       s.APIKey,
		Attributes:   strings.Join(s.Attributes, ","),
		UserAgent:    s.UserAgent,
	}
}

func (m scorerModel) toDomain() model.Scorer {
	var attrs []string
	for _, a := range strings.Split(m.Attributes, ",") {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return model.Scorer{
		ID:           m.ID,
		Name:         m.Name,
		IsActive:     m.IsActive,
		EndpointType: model.EndpointType(m.EndpointType),
		Endpoint:     m.Endpoint,
		APIKey:       m.APIKey,
		Attributes:   attrs,
		UserAgent:    m.UserAgent,
	}
}

type scoreRequestModel struct {
	ID        string     `gorm:"column:id;primaryKey"`
	CommentID string     `gorm:"column:comment_id;index:idx_score_requests_pair"`
	ScorerID  string     `gorm:"column:scorer_id;index:idx_score_requests_pair"`
	SentAt    time.Time  `gorm:"column:sent_at"`
	DoneAt    *time.Time `gorm:"column:done_at"`
}

func (scoreRequestModel) TableName() string { return "score_requests" }

func (m scoreRequestModel) toDomain() model.ScoreRequest {
	return model.ScoreRequest{
		ID:        m.ID,
		CommentID: m.CommentID,
		ScorerID:  m.ScorerID,
		SentAt:    m.SentAt.UTC(),
		DoneAt:    utcPtr(m.DoneAt),
	}
}

type tagModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	Key              string    `gorm:"column:tag_key;uniqueIndex"`
	Label            string    `gorm:"column:label"`
	IsInSummaryScore bool      `gorm:"column:is_in_summary_score;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (tagModel) TableName() string { return "tags" }

func (m tagModel) toDomain() model.Tag {
	return model.Tag{
		ID:               m.ID,
		Key:              m.Key,
		Label:            m.Label,
		IsInSummaryScore: m.IsInSummaryScore,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

type scoreModel struct {
	ID        string  `gorm:"column:id;primaryKey"`
	CommentID string  `gorm:"column:comment_id;index:idx_scores_pair"`
	ScorerID  string  `gorm:"column:scorer_id;index:idx_scores_pair"`
	TagID     string  `gorm:"column:tag_id"`
	Score     float64 `gorm:"column:score"`
	Begin     *int    `gorm:"column:span_begin"`
	End       *int    `gorm:"column:span_end"`
}

func (scoreModel) TableName() string { return "scores" }

func (m scoreModel) toDomain() model.Score {
	return model.Score{
		ID:        m.ID,
		CommentID: m.CommentID,
		ScorerID:  m.ScorerID,
		TagID:     m.TagID,
		Score:     m.Score,
		Begin:     m.Begin,
		End:       m.End,
	}
}

type summaryScoreModel struct {
	CommentID string  `gorm:"column:comment_id;primaryKey"`
	TagID     string  `gorm:"column:tag_id;primaryKey"`
	Score     float64 `gorm:"column:score"`
}

func (summaryScoreModel) TableName() string { return "summary_scores" }

type ruleModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	TagID          string    `gorm:"column:tag_id"`
	CategoryID     string    `gorm:"column:category_id"`
	LowerThreshold float64   `gorm:"column:lower_threshold"`
	UpperThreshold float64   `gorm:"column:upper_threshold"`
	Action         string    `gorm:"column:action"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (ruleModel) TableName() string { return "moderation_rules" }

func (m ruleModel) toDomain() model.ModerationRule {
	return model.ModerationRule{
		ID:             m.ID,
		TagID:          m.TagID,
		CategoryID:     m.CategoryID,
		LowerThreshold: m.LowerThreshold,
		UpperThreshold: m.UpperThreshold,
		Action:         model.Action(m.Action),
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type decisionModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	CommentID         string    `gorm:"column:comment_id;index"`
	Status            string    `gorm:"column:status"`
	SourceKind        string    `gorm:"column:source_kind"`
	SourceID          string    `gorm:"column:source_id"`
	IsCurrentDecision bool      `gorm:"column:is_current_decision;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	Seq               int64     `gorm:"column:seq"`
}

func (decisionModel) TableName() string { return "decisions" }

func (m decisionModel) toDomain() model.Decision {
	return model.Decision{
		ID:                m.ID,
		CommentID:         m.CommentID,
		Status:            model.DecisionStatus(m.Status),
		Source:            model.Source{Kind: model.SourceKind(m.SourceKind), ID: m.SourceID},
		IsCurrentDecision: m.IsCurrentDecision,
		CreatedAt:         m.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func allModels() []any {
	return []any{
		&commentModel{},
		&articleModel{},
		&categoryModel{},
		&scorerModel{},
		&scoreRequestModel{},
		&tagModel{},
		&scoreModel{},
		&summaryScoreModel{},
		&ruleModel{},
		&decisionModel{},
	}
}
