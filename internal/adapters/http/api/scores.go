package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/moderator/internal/domain/dedupe"
	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/pkg/logger"
)

// IdempotencyKeyHeader names the header a scorer uses to tag a delivery.
const IdempotencyKeyHeader = "Idempotency-Key"

// DeliveryDependencies defines the interface for score delivery processing.
type DeliveryDependencies interface {
	dedupe.Deduper
	IngestDelivery(ctx context.Context, requestID string, data model.ScoreData) error
	EnqueueDelivery(ctx context.Context, requestID string, data model.ScoreData) error
}

// ScoresHandler receives score deliveries from scoring proxies.
type ScoresHandler struct {
	deps   DeliveryDependencies
	logger logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps DeliveryDependencies, log logger.Logger) *ScoresHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ScoresHandler{deps: deps, logger: log}
}

// HandleDelivery handles POST /scores/{requestID}. Deliveries are ingested
// before responding unless the caller sends "Prefer: respond-async", in
// which case they are queued and acknowledged with 202.
func (h *ScoresHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_delivery"
	ctx := r.Context()

	requestID := strings.TrimSpace(r.PathValue("requestID"))
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var data model.ScoreData
	if err := decodeJSON(r, w, &data); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key != "" && h.deps.SeenAndRecord(ctx, key) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	async := strings.Contains(strings.ToLower(r.Header.Get("Prefer")), "respond-async")
	var err error
	if async {
		err = h.deps.EnqueueDelivery(ctx, requestID, data)
	} else {
		err = h.deps.IngestDelivery(ctx, requestID, data)
	}
	if err != nil {
		if key != "" {
			h.deps.Unrecord(ctx, key)
		}
		writeFailure(ctx, w, h.logger, op, err)
		return
	}

	if async {
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ingested"})
}
