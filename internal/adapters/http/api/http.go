// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	DeliveryDependencies
	CommentDependencies
}

// Server wires HTTP routes for the moderation API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	scoresHandler   *ScoresHandler
	commentsHandler *CommentsHandler
	logger          logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger handlers report server errors to.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("http")

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.scoresHandler = NewScoresHandler(deps, s.logger)
	s.commentsHandler = NewCommentsHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /scores/{requestID}", MetricsMiddleware(s.scoresHandler.HandleDelivery, "scores"))
	mux.HandleFunc("POST /comments", MetricsMiddleware(s.commentsHandler.HandleSubmit, "comments"))
	mux.HandleFunc("POST /comments/{id}/score", MetricsMiddleware(s.commentsHandler.HandleScore, "comment_score"))
	mux.HandleFunc("POST /comments/{id}/resolve", MetricsMiddleware(s.commentsHandler.HandleResolve, "comment_resolve"))
	mux.HandleFunc("POST /comments/{id}/{action}", MetricsMiddleware(s.commentsHandler.HandleModerate, "comment_moderate"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type commentResponse struct {
	ID              string     `json:"id"`
	ArticleID       string     `json:"articleId,omitempty"`
	ReplyToID       string     `json:"replyToId,omitempty"`
	AuthorID        string     `json:"authorId,omitempty"`
	IsModerated     bool       `json:"isModerated"`
	IsAccepted      *bool      `json:"isAccepted"`
	IsDeferred      bool       `json:"isDeferred"`
	IsHighlighted   bool       `json:"isHighlighted"`
	IsAutoResolved  bool       `json:"isAutoResolved"`
	IsScored        bool       `json:"isScored"`
	SentForScoring  *time.Time `json:"sentForScoring,omitempty"`
	MaxSummaryScore *float64   `json:"maxSummaryScore,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toCommentResponse(c model.Comment) commentResponse {
	return commentResponse{
		ID:              c.ID,
		ArticleID:       c.ArticleID,
		ReplyToID:       c.ReplyToID,
		AuthorID:        c.AuthorID,
		IsModerated:     c.IsModerated,
		IsAccepted:      c.IsAccepted,
		IsDeferred:      c.IsDeferred,
		IsHighlighted:   c.IsHighlighted,
		IsAutoResolved:  c.IsAutoResolved,
		IsScored:        c.IsScored,
		SentForScoring:  c.SentForScoring,
		MaxSummaryScore: c.MaxSummaryScore,
		UpdatedAt:       c.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status, logging server-side failures.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func decodeJSON(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
