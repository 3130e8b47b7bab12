package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/moderator/internal/adapters/http/api"
	service "github.com/okian/moderator/internal/app"
	"github.com/okian/moderator/internal/adapters/repository"
	"github.com/okian/moderator/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDeduper struct {
	seen map[string]bool
}

func (m *mockDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeduper) Unrecord(_ context.Context, id string) {
	delete(m.seen, id)
}

func (m *mockDeduper) Size() int64 {
	return int64(len(m.seen))
}

type delivery struct {
	requestID string
	data      model.ScoreData
	async     bool
}

type mockDependencies struct {
	mockDeduper

	ingestErr  error
	enqueueErr error
	deliveries []delivery
	scored     []string
	resolved   []string
	moderated  []string
	sources    []model.Source
	submitted  []model.Comment
}

func (m *mockDependencies) IngestDelivery(_ context.Context, requestID string, data model.ScoreData) error {
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.deliveries = append(m.deliveries, delivery{requestID: requestID, data: data})
	return nil
}

func (m *mockDependencies) EnqueueDelivery(_ context.Context, requestID string, data model.ScoreData) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.deliveries = append(m.deliveries, delivery{requestID: requestID, data: data, async: true})
	return nil
}

func (m *mockDependencies) SubmitComment(_ context.Context, c model.Comment) (model.Comment, error) {
	if m.enqueueErr != nil {
		return model.Comment{}, m.enqueueErr
	}
	if c.ID == "" {
		c.ID = "generated"
	}
	m.submitted = append(m.submitted, c)
	return c, nil
}

func (m *mockDependencies) EnqueueScoring(_ context.Context, commentID string) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.scored = append(m.scored, commentID)
	return nil
}

func (m *mockDependencies) EnqueueResolve(_ context.Context, commentID string) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.resolved = append(m.resolved, commentID)
	return nil
}

func (m *mockDependencies) Moderate(_ context.Context, commentID, action string, source model.Source) (model.Comment, error) {
	switch {
	case action == "promote":
		return model.Comment{}, fmt.Errorf("%w: %q", service.ErrUnknownAction, action)
	case commentID == "missing":
		return model.Comment{}, fmt.Errorf("comment %s: %w", commentID, repository.ErrNotFound)
	}
	m.moderated = append(m.moderated, commentID+":"+action)
	m.sources = append(m.sources, source)
	yes := true
	return model.Comment{ID: commentID, IsModerated: true, IsAccepted: &yes}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Then the health endpoint serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then unknown methods are refused", func() {
			w := do(mux, http.MethodDelete, "/stats", "", nil)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestScoresHandler(t *testing.T) {
	Convey("Given a scores handler", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		body := `{"scores":{"TOXICITY":[{"score":0.4,"begin":0,"end":5}]},"summaryScores":{"TOXICITY":0.4}}`

		Convey("When a delivery arrives", func() {
			w := do(mux, http.MethodPost, "/scores/req-1", body, nil)

			Convey("Then it is ingested before the response", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.deliveries, ShouldHaveLength, 1)
				So(deps.deliveries[0].requestID, ShouldEqual, "req-1")
				So(deps.deliveries[0].async, ShouldBeFalse)
				So(deps.deliveries[0].data.SummaryScores["TOXICITY"], ShouldEqual, 0.4)
				So(*deps.deliveries[0].data.Scores["TOXICITY"][0].End, ShouldEqual, 5)
			})
		})

		Convey("When the caller prefers an asynchronous answer", func() {
			w := do(mux, http.MethodPost, "/scores/req-1", body, map[string]string{"Prefer": "respond-async"})

			Convey("Then the delivery is queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.deliveries[0].async, ShouldBeTrue)
			})
		})

		Convey("When the same idempotency key is delivered twice", func() {
			headers := map[string]string{api.IdempotencyKeyHeader: "delivery-1"}
			first := do(mux, http.MethodPost, "/scores/req-1", body, headers)
			second := do(mux, http.MethodPost, "/scores/req-1", body, headers)

			Convey("Then the second one is acknowledged as a duplicate", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(second.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.deliveries, ShouldHaveLength, 1)
			})
		})

		Convey("When the request id is unknown", func() {
			deps.ingestErr = fmt.Errorf("%w: request req-9", service.ErrDataIntegrity)
			headers := map[string]string{api.IdempotencyKeyHeader: "delivery-2"}
			w := do(mux, http.MethodPost, "/scores/req-9", body, headers)

			Convey("Then it is reported as not found and the key is released", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, "unknown_request")
				So(deps.seen["delivery-2"], ShouldBeFalse)
			})
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = service.ErrQueueFull
			w := do(mux, http.MethodPost, "/scores/req-1", body, map[string]string{"Prefer": "respond-async"})

			Convey("Then it reports backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/scores/req-1", "not json", nil)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestCommentsHandler(t *testing.T) {
	Convey("Given a comments handler", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When a comment is submitted", func() {
			w := do(mux, http.MethodPost, "/comments", `{"articleId":"a1","text":"hello"}`, nil)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].ArticleID, ShouldEqual, "a1")
				So(w.Body.String(), ShouldContainSubstring, `"id":"generated"`)
			})
		})

		Convey("When a comment without text is submitted", func() {
			w := do(mux, http.MethodPost, "/comments", `{"articleId":"a1"}`, nil)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When scoring is requested", func() {
			w := do(mux, http.MethodPost, "/comments/c1/score", "", nil)

			Convey("Then scoring is enqueued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.scored, ShouldResemble, []string{"c1"})
			})
		})

		Convey("When resolution is requested", func() {
			w := do(mux, http.MethodPost, "/comments/c1/resolve", "", nil)

			Convey("Then resolution is enqueued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.resolved, ShouldResemble, []string{"c1"})
			})
		})

		Convey("When the service is not running", func() {
			deps.enqueueErr = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/comments/c1/score", "", nil)

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When a moderator accepts a comment", func() {
			w := do(mux, http.MethodPost, "/comments/c1/accept", `{"userId":"mod-1"}`, nil)

			Convey("Then the action is attributed to the moderator", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.moderated, ShouldResemble, []string{"c1:accept"})
				So(deps.sources[0], ShouldResemble, model.UserSource("mod-1"))
				So(w.Body.String(), ShouldContainSubstring, `"isAccepted":true`)
			})
		})

		Convey("When an action arrives without a body", func() {
			w := do(mux, http.MethodPost, "/comments/c1/reset", "", nil)

			Convey("Then the system is the source", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.sources[0], ShouldResemble, model.SystemSource())
			})
		})

		Convey("When an unknown action is requested", func() {
			w := do(mux, http.MethodPost, "/comments/c1/promote", "", nil)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the comment does not exist", func() {
			w := do(mux, http.MethodPost, "/comments/missing/accept", "", nil)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
