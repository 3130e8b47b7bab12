package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
)

// CommentDependencies defines the interface for comment operations.
type CommentDependencies interface {
	SubmitComment(ctx context.Context, c model.Comment) (model.Comment, error)
	EnqueueScoring(ctx context.Context, commentID string) error
	EnqueueResolve(ctx context.Context, commentID string) error
	Moderate(ctx context.Context, commentID, action string, source model.Source) (model.Comment, error)
}

// CommentsHandler handles comment submission and moderation requests.
type CommentsHandler struct {
	deps   CommentDependencies
	logger logger.Logger
}

// NewCommentsHandler creates a new comments handler.
func NewCommentsHandler(deps CommentDependencies, log logger.Logger) *CommentsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CommentsHandler{deps: deps, logger: log}
}

type submitRequest struct {
	ID        string `json:"id"`
	ArticleID string `json:"articleId"`
	ReplyToID string `json:"replyToId"`
	AuthorID  string `json:"authorId"`
	Text      string `json:"text"`
}

func (s submitRequest) validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return errors.New("missing text")
	}
	return nil
}

type moderateRequest struct {
	UserID string `json:"userId"`
}

// HandleSubmit handles POST /comments.
func (h *CommentsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_comment"
	var req submitRequest
	if err := decodeJSON(r, w, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	c, err := h.deps.SubmitComment(r.Context(), model.Comment{
		ID:        req.ID,
		ArticleID: req.ArticleID,
		ReplyToID: req.ReplyToID,
		AuthorID:  req.AuthorID,
		Text:      req.Text,
	})
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toCommentResponse(c))
}

// HandleScore handles POST /comments/{id}/score.
func (h *CommentsHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, "api.score_comment", h.deps.EnqueueScoring)
}

// HandleResolve handles POST /comments/{id}/resolve.
func (h *CommentsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, "api.resolve_comment", h.deps.EnqueueResolve)
}

func (h *CommentsHandler) enqueue(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleModerate handles POST /comments/{id}/{action} for the manual
// actions accept, reject, defer, highlight and reset. A userId in the body
// attributes the decision to that moderator.
func (h *CommentsHandler) HandleModerate(w http.ResponseWriter, r *http.Request) {
	const op = "api.moderate_comment"
	id := strings.TrimSpace(r.PathValue("id"))
	action := strings.TrimSpace(r.PathValue("action"))
	if id == "" || action == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req moderateRequest
	if err := decodeJSON(r, w, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	source := model.SystemSource()
	if req.UserID != "" {
		source = model.UserSource(req.UserID)
	}

	c, err := h.deps.Moderate(r.Context(), id, action, source)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(c))
}
