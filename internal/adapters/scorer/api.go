package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/internal/domain/tags"
)

// maxResponseBytes bounds how much of a scorer response is read.
const maxResponseBytes = 4 << 20

type apiTextEntry struct {
	Text string `json:"text"`
}

type apiContext struct {
	Entries []apiTextEntry `json:"entries,omitempty"`
}

type apiRequest struct {
	Comment             apiTextEntry        `json:"comment"`
	Context             *apiContext         `json:"context,omitempty"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	SpanAnnotations     bool                `json:"spanAnnotations"`
	DoNotStore          bool                `json:"doNotStore"`
}

type apiScoreValue struct {
	Value float64 `json:"value"`
}

type apiSpanScore struct {
	Begin *int          `json:"begin"`
	End   *int          `json:"end"`
	Score apiScoreValue `json:"score"`
}

type apiAttributeScore struct {
	SpanScores   []apiSpanScore `json:"spanScores"`
	SummaryScore *apiScoreValue `json:"summaryScore"`
}

type apiResponse struct {
	AttributeScores map[string]apiAttributeScore `json:"attributeScores"`
}

// APIShim scores comments synchronously against an attribute scoring API
// and ingests the answer before returning.
type APIShim struct {
	scorerID string
	endpoint APIEndpoint
	client   *http.Client
	ingester Ingester
}

// NewAPIShim creates an API-backed shim for scorerID.
func NewAPIShim(scorerID string, endpoint APIEndpoint, client *http.Client, ingester Ingester) *APIShim {
	return &APIShim{scorerID: scorerID, endpoint: endpoint, client: client, ingester: ingester}
}

// SendToScorer implements Shim.
func (s *APIShim) SendToScorer(ctx context.Context, in Input, _ string) error {
	text := StripMarkup(in.Comment.Text)
	payload := apiRequest{
		Comment:             apiTextEntry{Text: text},
		RequestedAttributes: make(map[string]struct{}, len(s.endpoint.Attributes)),
		SpanAnnotations:     true,
		DoNotStore:          true,
	}
	for _, attr := range s.endpoint.Attributes {
		payload.RequestedAttributes[attr] = struct{}{}
	}

	var entries []apiTextEntry
	if in.Article != nil && in.Article.Text != "" {
		entries = append(entries, apiTextEntry{Text: StripMarkup(in.Article.Text)})
	}
	if in.ReplyTo != nil && in.ReplyTo.Text != "" {
		entries = append(entries, apiTextEntry{Text: StripMarkup(in.ReplyTo.Text)})
	}
	if len(entries) > 0 {
		payload.Context = &apiContext{Entries: entries}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode api request: %w", err)
	}

	target := s.endpoint.URL
	if s.endpoint.APIKey != "" {
		u, err := url.Parse(target)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		q := u.Query()
		q.Set("key", s.endpoint.APIKey)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", s.endpoint.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%w: scorer %s returned status %d", ErrTransient, s.scorerID, resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return s.ingester.IngestScore(ctx, in.Comment.ID, s.scorerID, unpackAttributeScores(decoded, textLength(text)))
}

// unpackAttributeScores converts an API answer into score data. An
// attribute with only a summary score gets one span over the whole text.
// Names that collide once the version is stripped are resolved in lexical
// order: the last name wins and replaces what earlier versions reported.
func unpackAttributeScores(resp apiResponse, length int) model.ScoreData {
	data := model.ScoreData{
		Scores:        make(map[string][]model.SpanScore, len(resp.AttributeScores)),
		SummaryScores: make(map[string]float64, len(resp.AttributeScores)),
	}
	names := make([]string, 0, len(resp.AttributeScores))
	for attr := range resp.AttributeScores {
		names = append(names, attr)
	}
	sort.Strings(names)

	for _, attr := range names {
		scores := resp.AttributeScores[attr]
		key := tags.StripVersion(attr)
		delete(data.Scores, key)
		delete(data.SummaryScores, key)
		for _, span := range scores.SpanScores {
			data.Scores[key] = append(data.Scores[key], model.SpanScore{
				Score: span.Score.Value,
				Begin: span.Begin,
				End:   span.End,
			})
		}
		if scores.SummaryScore == nil {
			continue
		}
		data.SummaryScores[key] = scores.SummaryScore.Value
		if len(data.Scores[key]) == 0 {
			begin, end := 0, length
			data.Scores[key] = []model.SpanScore{{Score: scores.SummaryScore.Value, Begin: &begin, End: &end}}
		}
	}
	return data
}
