package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/moderator/internal/app"
	"github.com/okian/moderator/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with one synchronous and one webhook scorer", t, func() {
		f := newFixture(service.WithQueueSize(100))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		f.scorer("sync", true)
		f.scorer("hook", true)
		f.article("a1", "", true)
		f.rule("TOXICITY", "", 0.5, 1, model.ActionReject)
		f.shim("sync").respond = answerWith(f.svc, "sync", summary(map[string]float64{"TOXICITY": 0.2}))

		So(f.svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = f.svc.Stop(ctx) })

		Convey("When a comment is submitted", func() {
			c, err := f.svc.SubmitComment(ctx, model.Comment{ArticleID: "a1", Text: "you are wrong"})
			So(err, ShouldBeNil)

			dispatched := waitFor(5*time.Second, func() bool {
				return len(f.shim("hook").calls()) == 1 && f.reload(c.ID).SentForScoring != nil
			})

			Convey("Then both scorers are dispatched and scoring waits for the webhook", func() {
				So(dispatched, ShouldBeTrue)
				So(f.shim("sync").calls(), ShouldHaveLength, 1)
				So(f.reload(c.ID).IsScored, ShouldBeFalse)
			})

			Convey("And the webhook delivers", func() {
				So(dispatched, ShouldBeTrue)
				requestID := f.shim("hook").calls()[0]
				So(f.svc.EnqueueDelivery(ctx, requestID, summary(map[string]float64{"TOXICITY": 0.8})), ShouldBeNil)

				resolved := waitFor(5*time.Second, func() bool {
					return f.reload(c.ID).IsScored
				})

				Convey("Then the comment is scored and rejected by the rule", func() {
					So(resolved, ShouldBeTrue)
					got := f.reload(c.ID)
					So(got.Rejected(), ShouldBeTrue)
					So(got.IsAutoResolved, ShouldBeTrue)
				})
			})
		})

		Convey("When a delivery names an unknown request", func() {
			So(f.svc.EnqueueDelivery(ctx, "unknown", summary(map[string]float64{"TOXICITY": 0.8})), ShouldBeNil)

			Convey("Then it is dropped without retries", func() {
				So(waitFor(2*time.Second, func() bool {
					return f.svc.GetStats()["queueLengths"].(map[string]int)["ingest"] == 0
				}), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service with an in-process heartbeat", t, func() {
		f := newFixture(
			service.WithHeartbeatInterval(5*time.Millisecond),
			service.WithResendEvery(1),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		f.scorer("alpha", true)
		c := f.comment("stale", "")
		at := f.clock().Add(-time.Hour)
		c.SentForScoring = &at
		So(f.store.UpdateComment(f.ctx, c), ShouldBeNil)

		So(f.svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = f.svc.Stop(ctx) })

		Convey("When the heartbeat ticks", func() {
			resent := waitFor(5*time.Second, func() bool {
				return len(f.shim("alpha").calls()) > 0
			})

			Convey("Then the stale comment is re-dispatched", func() {
				So(resent, ShouldBeTrue)
				So(f.svc.GetStats()["ticks"], ShouldBeGreaterThan, 0)
			})
		})
	})
}
