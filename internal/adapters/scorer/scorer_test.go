package scorer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/okian/moderator/internal/adapters/scorer"
	"github.com/okian/moderator/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type ingestCall struct {
	commentID string
	scorerID  string
	data      model.ScoreData
}

type recordingIngester struct {
	mu    sync.Mutex
	calls []ingestCall
	err   error
}

func (r *recordingIngester) IngestScore(_ context.Context, commentID, scorerID string, data model.ScoreData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ingestCall{commentID: commentID, scorerID: scorerID, data: data})
	return r.err
}

func TestStripMarkup(t *testing.T) {
	Convey("Given comment text with markup", t, func() {
		Convey("Then tags are removed and whitespace collapsed", func() {
			So(scorer.StripMarkup("<p>Hello <b>world</b></p>\n<p>again</p>"), ShouldEqual, "Hello world again")
		})

		Convey("Then entities are decoded", func() {
			So(scorer.StripMarkup("fish &amp; chips"), ShouldEqual, "fish & chips")
		})

		Convey("Then scripts are dropped", func() {
			So(scorer.StripMarkup("ok<script>alert(1)</script>"), ShouldEqual, "ok")
		})

		Convey("Then plain text passes through", func() {
			So(scorer.StripMarkup("  just   text "), ShouldEqual, "just text")
		})
	})
}

func TestParseEndpoint(t *testing.T) {
	Convey("Given scorer configurations", t, func() {
		Convey("When the type is api with attributes", func() {
			ep, err := scorer.ParseEndpoint(model.Scorer{
				ID: "s1", EndpointType: model.EndpointAPI, Endpoint: "https://scores.example/v1",
				APIKey: "k", Attributes: []string{"TOXICITY"},
			})

			Convey("Then an APIEndpoint is returned", func() {
				So(err, ShouldBeNil)
				api, ok := ep.(scorer.APIEndpoint)
				So(ok, ShouldBeTrue)
				So(api.Attributes, ShouldResemble, []string{"TOXICITY"})
			})
		})

		Convey("When the type is proxy", func() {
			ep, err := scorer.ParseEndpoint(model.Scorer{ID: "s2", EndpointType: model.EndpointProxy, Endpoint: "http://proxy.local/score"})

			Convey("Then a ProxyEndpoint is returned", func() {
				So(err, ShouldBeNil)
				_, ok := ep.(scorer.ProxyEndpoint)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the type is unknown", func() {
			_, err := scorer.ParseEndpoint(model.Scorer{ID: "s3", EndpointType: "carrier-pigeon", Endpoint: "http://x.local"})

			Convey("Then it is a configuration error", func() {
				So(errors.Is(err, scorer.ErrConfiguration), ShouldBeTrue)
			})
		})

		Convey("When the endpoint is not an absolute url", func() {
			_, err := scorer.ParseEndpoint(model.Scorer{ID: "s4", EndpointType: model.EndpointProxy, Endpoint: "/relative"})

			Convey("Then it is a configuration error", func() {
				So(errors.Is(err, scorer.ErrConfiguration), ShouldBeTrue)
			})
		})

		Convey("When an api scorer has no attributes", func() {
			_, err := scorer.ParseEndpoint(model.Scorer{ID: "s5", EndpointType: model.EndpointAPI, Endpoint: "http://x.local"})

			Convey("Then it is a configuration error", func() {
				So(errors.Is(err, scorer.ErrConfiguration), ShouldBeTrue)
			})
		})
	})
}

func TestAPIShim(t *testing.T) {
	ctx := context.Background()

	Convey("Given an API scorer", t, func() {
		var received map[string]any
		var gotKey, gotAgent string
		status := http.StatusOK
		response := `{"attributeScores":{
			"TOXICITY@v2":{"spanScores":[{"begin":0,"end":5,"score":{"value":0.9}},{"begin":6,"end":11,"score":{"value":0.1}}],"summaryScore":{"value":0.9}},
			"INSULT":{"summaryScore":{"value":0.4}}
		}}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.URL.Query().Get("key")
			gotAgent = r.Header.Get("User-Agent")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &received)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(response))
		}))
		Reset(srv.Close)

		ing := &recordingIngester{}
		shim := scorer.NewAPIShim("s1", scorer.APIEndpoint{
			URL: srv.URL, APIKey: "secret", Attributes: []string{"TOXICITY", "INSULT"}, UserAgent: "moderator-test",
		}, srv.Client(), ing)

		in := scorer.Input{
			Comment: model.Comment{ID: "c1", Text: "<p>héllo world</p>"},
			Article: &model.Article{ID: "a1", Text: "<h1>Story</h1>"},
			ReplyTo: &model.Comment{ID: "c0", Text: "parent"},
		}

		Convey("When the comment is sent", func() {
			err := shim.SendToScorer(ctx, in, "req-1")
			So(err, ShouldBeNil)

			Convey("Then the request carries stripped text, context and attributes", func() {
				So(gotKey, ShouldEqual, "secret")
				So(gotAgent, ShouldEqual, "moderator-test")
				So(received["comment"], ShouldResemble, map[string]any{"text": "héllo world"})
				entries := received["context"].(map[string]any)["entries"].([]any)
				So(len(entries), ShouldEqual, 2)
				So(entries[0], ShouldResemble, map[string]any{"text": "Story"})
				attrs := received["requestedAttributes"].(map[string]any)
				So(attrs, ShouldContainKey, "TOXICITY")
				So(attrs, ShouldContainKey, "INSULT")
			})

			Convey("Then scores are ingested synchronously with versions stripped", func() {
				So(len(ing.calls), ShouldEqual, 1)
				call := ing.calls[0]
				So(call.commentID, ShouldEqual, "c1")
				So(call.scorerID, ShouldEqual, "s1")
				So(call.data.SummaryScores, ShouldResemble, map[string]float64{"TOXICITY": 0.9, "INSULT": 0.4})
				So(len(call.data.Scores["TOXICITY"]), ShouldEqual, 2)
			})

			Convey("Then a summary-only attribute gets one full-text span", func() {
				spans := ing.calls[0].data.Scores["INSULT"]
				So(len(spans), ShouldEqual, 1)
				So(*spans[0].Begin, ShouldEqual, 0)
				So(*spans[0].End, ShouldEqual, len([]rune("héllo world")))
				So(spans[0].Score, ShouldEqual, 0.4)
			})
		})

		Convey("When the scorer answers with an error status", func() {
			status = http.StatusServiceUnavailable
			err := shim.SendToScorer(ctx, in, "req-1")

			Convey("Then the failure is transient and nothing is ingested", func() {
				So(errors.Is(err, scorer.ErrTransient), ShouldBeTrue)
				So(ing.calls, ShouldBeEmpty)
			})
		})

		Convey("When two versions of an attribute collide", func() {
			response = `{"attributeScores":{
				"TOXICITY@2":{"spanScores":[{"begin":0,"end":5,"score":{"value":0.8}}],"summaryScore":{"value":0.8}},
				"TOXICITY@1":{"spanScores":[{"begin":0,"end":5,"score":{"value":0.2}},{"begin":6,"end":11,"score":{"value":0.3}}],"summaryScore":{"value":0.3}}
			}}`

			Convey("Then the lexically last version wins every time", func() {
				for i := 0; i < 20; i++ {
					ing.calls = nil
					So(shim.SendToScorer(ctx, in, "req-1"), ShouldBeNil)
					So(len(ing.calls), ShouldEqual, 1)
					data := ing.calls[0].data
					So(data.SummaryScores, ShouldResemble, map[string]float64{"TOXICITY": 0.8})
					So(len(data.Scores["TOXICITY"]), ShouldEqual, 1)
					So(data.Scores["TOXICITY"][0].Score, ShouldEqual, 0.8)
				}
			})
		})

		Convey("When the scorer answers with garbage", func() {
			response = "not json"
			err := shim.SendToScorer(ctx, in, "req-1")

			Convey("Then the response is rejected", func() {
				So(errors.Is(err, scorer.ErrInvalidResponse), ShouldBeTrue)
			})
		})

		Convey("When ingestion fails", func() {
			ing.err = errors.New("db down")
			err := shim.SendToScorer(ctx, in, "req-1")

			Convey("Then the error is returned to the caller", func() {
				So(err, ShouldEqual, ing.err)
			})
		})
	})
}

func TestProxyShim(t *testing.T) {
	ctx := context.Background()

	Convey("Given a proxy scorer", t, func() {
		var received map[string]any
		var gotAuth string
		status := http.StatusOK
		response := ""
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &received)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(response))
		}))
		Reset(srv.Close)

		ing := &recordingIngester{}
		shim := scorer.NewProxyShim("s2", scorer.ProxyEndpoint{URL: srv.URL, APIKey: "Bearer t0ken"}, srv.Client(), ing, "https://moderator.example/")
		in := scorer.Input{
			Comment: model.Comment{ID: "c1", Text: "<i>hi</i>", AuthorID: "u1"},
			Article: &model.Article{ID: "a1", Text: "<p>body</p>"},
		}

		Convey("When the proxy acknowledges asynchronously", func() {
			err := shim.SendToScorer(ctx, in, "req-9")

			Convey("Then the payload carries plain and html text with the callback", func() {
				So(err, ShouldBeNil)
				So(gotAuth, ShouldEqual, "Bearer t0ken")
				comment := received["comment"].(map[string]any)
				So(comment["plainText"], ShouldEqual, "hi")
				So(comment["htmlText"], ShouldEqual, "<i>hi</i>")
				links := comment["links"].(map[string]any)
				So(links["callback"], ShouldEqual, "https://moderator.example/scores/req-9")
				So(received["article"].(map[string]any)["plainText"], ShouldEqual, "body")
				So(received, ShouldNotContainKey, "inReplyToComment")
			})

			Convey("Then nothing is ingested yet", func() {
				So(ing.calls, ShouldBeEmpty)
			})
		})

		Convey("When the proxy scores synchronously", func() {
			response = `{"scores":{"SPAM":[{"score":0.7,"begin":0,"end":2}]},"summaryScores":{"SPAM":0.7}}`
			err := shim.SendToScorer(ctx, in, "req-9")

			Convey("Then the body is ingested", func() {
				So(err, ShouldBeNil)
				So(len(ing.calls), ShouldEqual, 1)
				So(ing.calls[0].data.SummaryScores["SPAM"], ShouldEqual, 0.7)
			})
		})

		Convey("When the proxy acknowledges with an empty object", func() {
			response = `{}`
			err := shim.SendToScorer(ctx, in, "req-9")

			Convey("Then it is treated as an asynchronous acknowledgement", func() {
				So(err, ShouldBeNil)
				So(ing.calls, ShouldBeEmpty)
			})
		})

		Convey("When the proxy answers 200 with a malformed body", func() {
			response = `{"scores":`
			err := shim.SendToScorer(ctx, in, "req-9")

			Convey("Then the response is rejected and nothing is ingested", func() {
				So(errors.Is(err, scorer.ErrInvalidResponse), ShouldBeTrue)
				So(ing.calls, ShouldBeEmpty)
			})
		})

		Convey("When the proxy rejects the request", func() {
			status = http.StatusUnauthorized
			err := shim.SendToScorer(ctx, in, "req-9")

			Convey("Then the failure is transient", func() {
				So(errors.Is(err, scorer.ErrTransient), ShouldBeTrue)
			})
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry", t, func() {
		built := 0
		reg, err := scorer.NewRegistry(&recordingIngester{}, scorer.WithCacheSize(2), scorer.WithCallbackBase("http://cb.local"))
		So(err, ShouldBeNil)

		api := model.Scorer{ID: "s1", EndpointType: model.EndpointAPI, Endpoint: "http://api.local", Attributes: []string{"TOXICITY"}}
		proxy := model.Scorer{ID: "s2", EndpointType: model.EndpointProxy, Endpoint: "http://proxy.local"}

		Convey("When shims are requested by scorer", func() {
			first, err := reg.Shim(api)
			So(err, ShouldBeNil)
			again, err := reg.Shim(api)
			So(err, ShouldBeNil)
			p, err := reg.Shim(proxy)
			So(err, ShouldBeNil)

			Convey("Then each variant is built once and cached", func() {
				So(first, ShouldEqual, again)
				_, isAPI := first.(*scorer.APIShim)
				_, isProxy := p.(*scorer.ProxyShim)
				So(isAPI, ShouldBeTrue)
				So(isProxy, ShouldBeTrue)
				So(reg.Len(), ShouldEqual, 2)
			})

			Convey("Then invalidation forces a rebuild", func() {
				reg.Invalidate("s1")
				So(reg.Len(), ShouldEqual, 1)
				rebuilt, err := reg.Shim(api)
				So(err, ShouldBeNil)
				So(rebuilt, ShouldNotPointTo, first)
			})
		})

		Convey("When a scorer is misconfigured", func() {
			_, err := reg.Shim(model.Scorer{ID: "bad", EndpointType: "smoke-signal", Endpoint: "http://x.local"})

			Convey("Then the error surfaces and nothing is cached", func() {
				So(errors.Is(err, scorer.ErrConfiguration), ShouldBeTrue)
				So(reg.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a custom factory is installed", func() {
			reg, err := scorer.NewRegistry(nil, scorer.WithFactory(func(s model.Scorer) (scorer.Shim, error) {
				built++
				return scorer.NewProxyShim(s.ID, scorer.ProxyEndpoint{URL: "http://x"}, http.DefaultClient, nil, ""), nil
			}))
			So(err, ShouldBeNil)
			_, _ = reg.Shim(api)
			_, _ = reg.Shim(api)

			Convey("Then it is used once per scorer", func() {
				So(built, ShouldEqual, 1)
			})

			Convey("Then invalidation builds the shim again", func() {
				reg.Invalidate("s1")
				_, err := reg.Shim(api)
				So(err, ShouldBeNil)
				So(built, ShouldEqual, 2)
			})
		})
	})
}
