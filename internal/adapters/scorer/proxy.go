package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/moderator/internal/domain/model"
)

type proxyLinks struct {
	Callback string `json:"callback"`
}

type proxyDocument struct {
	ID        string      `json:"id"`
	PlainText string      `json:"plainText"`
	HTMLText  string      `json:"htmlText"`
	AuthorID  string      `json:"authorId,omitempty"`
	Links     *proxyLinks `json:"links,omitempty"`
}

type proxyRequest struct {
	Comment          proxyDocument  `json:"comment"`
	Article          *proxyDocument `json:"article,omitempty"`
	InReplyToComment *proxyDocument `json:"inReplyToComment,omitempty"`
}

// ProxyShim forwards comments to a scoring proxy that answers on the
// callback URL, or directly in the response body.
type ProxyShim struct {
	scorerID     string
	endpoint     ProxyEndpoint
	client       *http.Client
	ingester     Ingester
	callbackBase string
}

// NewProxyShim creates a proxy-backed shim for scorerID. Callbacks are
// addressed to callbackBase + "/scores/{correlator}".
func NewProxyShim(scorerID string, endpoint ProxyEndpoint, client *http.Client, ingester Ingester, callbackBase string) *ProxyShim {
	return &ProxyShim{
		scorerID:     scorerID,
		endpoint:     endpoint,
		client:       client,
		ingester:     ingester,
		callbackBase: strings.TrimRight(callbackBase, "/"),
	}
}

// CallbackURL is where the proxy delivers scores for correlator.
func (s *ProxyShim) CallbackURL(correlator string) string {
	return s.callbackBase + "/scores/" + correlator
}

// SendToScorer implements Shim.
func (s *ProxyShim) SendToScorer(ctx context.Context, in Input, correlator string) error {
	payload := proxyRequest{
		Comment: proxyDocument{
			ID:        in.Comment.ID,
			PlainText: StripMarkup(in.Comment.Text),
			HTMLText:  in.Comment.Text,
			AuthorID:  in.Comment.AuthorID,
			Links:     &proxyLinks{Callback: s.CallbackURL(correlator)},
		},
	}
	if in.Article != nil {
		payload.Article = &proxyDocument{
			ID:        in.Article.ID,
			PlainText: StripMarkup(in.Article.Text),
			HTMLText:  in.Article.Text,
		}
	}
	if in.ReplyTo != nil {
		payload.InReplyToComment = &proxyDocument{
			ID:        in.ReplyTo.ID,
			PlainText: StripMarkup(in.ReplyTo.Text),
			HTMLText:  in.ReplyTo.Text,
			AuthorID:  in.ReplyTo.AuthorID,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode proxy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.endpoint.APIKey != "" {
		req.Header.Set("Authorization", s.endpoint.APIKey)
	}
	if s.endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", s.endpoint.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: scorer %s returned status %d", ErrTransient, s.scorerID, resp.StatusCode)
	}

	data, ok, err := decodeSyncScores(raw)
	switch {
	case errors.Is(err, errEmptyBody):
		// Asynchronous proxies acknowledge without a payload.
		return nil
	case err != nil:
		return fmt.Errorf("%w: scorer %s: %w", ErrInvalidResponse, s.scorerID, err)
	case !ok:
		return nil
	}
	return s.ingester.IngestScore(ctx, in.Comment.ID, s.scorerID, data)
}

var errEmptyBody = errors.New("empty body")

// decodeSyncScores reports whether a proxy response body carries score
// data of its own.
func decodeSyncScores(raw []byte) (model.ScoreData, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return model.ScoreData{}, false, errEmptyBody
	}
	var data model.ScoreData
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.ScoreData{}, false, err
	}
	return data, !data.Empty(), nil
}
