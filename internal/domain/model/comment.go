// Package model contains domain models passed between layers.
package model

import "time"

// Comment is a user comment moving through scoring and moderation.
type Comment struct {
	ID        string
	ArticleID string // empty when the comment is not attached to an article
	ReplyToID string // empty for top-level comments
	AuthorID  string
	Text      string // may contain markup
	CreatedAt time.Time
	UpdatedAt time.Time

	IsModerated     bool
	IsAccepted      *bool // nil while unmoderated or deferred
	IsDeferred      bool
	IsHighlighted   bool
	IsAutoResolved  bool
	IsBatchResolved bool

	IsScored       bool
	SentForScoring *time.Time

	MaxSummaryScore      *float64
	MaxSummaryScoreTagID string
}

// Accepted reports whether the comment is currently accepted.
func (c Comment) Accepted() bool {
	return c.IsAccepted != nil && *c.IsAccepted
}

// Rejected reports whether the comment is currently rejected.
func (c Comment) Rejected() bool {
	return c.IsAccepted != nil && !*c.IsAccepted
}

// Article groups comments and controls whether rules may act on them.
type Article struct {
	ID              string
	CategoryID      string // empty for uncategorized articles
	Title           string
	Text            string
	IsAutoModerated bool
	Counts          CommentCounts
	UpdatedAt       time.Time
}

// Category is an optional grouping of articles that can scope rules.
type Category struct {
	ID     string
	Label  string
	Counts CommentCounts
}

// CommentCounts is the denormalized moderation state summary kept on
// articles and categories.
type CommentCounts struct {
	All         int64
	Unmoderated int64
	Moderated   int64
	Approved    int64
	Rejected    int64
	Deferred    int64
	Highlighted int64
}
