package model

import "time"

// EndpointType selects the transport a scorer is reached through.
type EndpointType string

// Known endpoint types.
const (
	EndpointAPI   EndpointType = "api"
	EndpointProxy EndpointType = "proxy"
)

// Scorer is an external service that assigns scores to comments.
type Scorer struct {
	ID           string
	Name         string
	IsActive     bool
	EndpointType EndpointType
	Endpoint     string
	APIKey       string
	Attributes   []string
	UserAgent    string
}

// ScoreRequest tracks one dispatch of a comment to a scorer.
type ScoreRequest struct {
	ID        string
	CommentID string
	ScorerID  string
	SentAt    time.Time
	DoneAt    *time.Time
}

// Done reports whether the scorer answered this request.
func (r ScoreRequest) Done() bool {
	return r.DoneAt != nil
}

// Score is a per-span score produced by one scorer for one tag.
type Score struct {
	ID        string
	CommentID string
	ScorerID  string
	TagID     string
	Score     float64
	Begin     *int
	End       *int
}

// SummaryScore is the single aggregate score of a comment for a tag.
type SummaryScore struct {
	CommentID string
	TagID     string
	Score     float64
}

// Tag is a named scoring attribute.
type Tag struct {
	ID               string
	Key              string
	Label            string
	IsInSummaryScore bool
	CreatedAt        time.Time
}

// SummaryScoreTagKey is the key of the virtual tag whose score is the
// comment's denormalized max summary score.
const SummaryScoreTagKey = "SUMMARY_SCORE"

// SpanScore is one scored span as delivered by a scorer.
type SpanScore struct {
	Score float64 `json:"score"`
	Begin *int    `json:"begin,omitempty"`
	End   *int    `json:"end,omitempty"`
}

// ScoreData is the payload a scorer delivers for a comment.
type ScoreData struct {
	Scores        map[string][]SpanScore `json:"scores"`
	SummaryScores map[string]float64     `json:"summaryScores"`
}

// Empty reports whether the payload carries no scores at all.
func (d ScoreData) Empty() bool {
	return len(d.Scores) == 0 && len(d.SummaryScores) == 0
}

// TagKeys returns every distinct tag key in the payload, span keys first,
// in a stable order.
func (d ScoreData) TagKeys() []string {
	seen := make(map[string]struct{}, len(d.Scores)+len(d.SummaryScores))
	keys := make([]string, 0, len(d.Scores)+len(d.SummaryScores))
	for _, k := range sortedKeys(d.Scores) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, k := range sortedKeys(d.SummaryScores) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
