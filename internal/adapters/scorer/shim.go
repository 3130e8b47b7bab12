// Package scorer sends comments to external scoring services and turns
// their answers into score data for ingestion.
package scorer

import (
	"context"

	"github.com/okian/moderator/internal/domain/model"
)

// Input is the comment being scored together with its context.
type Input struct {
	Comment model.Comment
	Article *model.Article // nil when the comment has no article
	ReplyTo *model.Comment // nil for top-level comments
}

// Shim dispatches one comment to one scorer. correlator identifies the
// score request the eventual answer belongs to.
type Shim interface {
	SendToScorer(ctx context.Context, in Input, correlator string) error
}

// Ingester receives score data for a (comment, scorer) pair.
type Ingester interface {
	IngestScore(ctx context.Context, commentID, scorerID string, data model.ScoreData) error
}

// IngesterFunc adapts a function to Ingester.
type IngesterFunc func(ctx context.Context, commentID, scorerID string, data model.ScoreData) error

// IngestScore calls f.
func (f IngesterFunc) IngestScore(ctx context.Context, commentID, scorerID string, data model.ScoreData) error {
	return f(ctx, commentID, scorerID, data)
}
