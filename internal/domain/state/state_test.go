package state_test

import (
	"testing"

	"github.com/okian/moderator/internal/domain/model"
	"github.com/okian/moderator/internal/domain/state"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBundles(t *testing.T) {
	Convey("Given an unmoderated comment", t, func() {
		c := model.Comment{ID: "c1"}

		Convey("When accepted", func() {
			out := state.Apply(c, state.Accept())

			Convey("Then it is moderated and accepted", func() {
				So(out.IsModerated, ShouldBeTrue)
				So(out.Accepted(), ShouldBeTrue)
				So(out.IsDeferred, ShouldBeFalse)
				So(out.IsHighlighted, ShouldBeFalse)
			})
		})

		Convey("When rejected after being highlighted", func() {
			out := state.Apply(state.Apply(c, state.Highlight()), state.Reject())

			Convey("Then the highlight is cleared", func() {
				So(out.Rejected(), ShouldBeTrue)
				So(out.IsHighlighted, ShouldBeFalse)
			})
		})

		Convey("When deferred", func() {
			out := state.Apply(state.Apply(c, state.Accept()), state.Defer())

			Convey("Then isAccepted is null and the comment is deferred", func() {
				So(out.IsModerated, ShouldBeTrue)
				So(out.IsAccepted, ShouldBeNil)
				So(out.IsDeferred, ShouldBeTrue)
			})
		})

		Convey("When reset", func() {
			moderated := state.Apply(c, state.Merge(state.Highlight(), state.AutoResolved(false)))
			out := state.Apply(moderated, state.Reset())

			Convey("Then every moderation flag returns to its default", func() {
				So(out.IsModerated, ShouldBeFalse)
				So(out.IsAccepted, ShouldBeNil)
				So(out.IsDeferred, ShouldBeFalse)
				So(out.IsHighlighted, ShouldBeFalse)
				So(out.IsAutoResolved, ShouldBeFalse)
				So(out.IsBatchResolved, ShouldBeFalse)
			})
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Given a bundle and an extra bundle", t, func() {
		Convey("When their keys collide", func() {
			merged := state.Merge(state.Reject(), state.AutoResolved(true))
			out := state.Apply(model.Comment{}, merged)

			Convey("Then the bundle keys win", func() {
				So(out.IsHighlighted, ShouldBeFalse)
				So(out.IsAutoResolved, ShouldBeTrue)
			})
		})

		Convey("When the extra bundle fills a key the bundle leaves out", func() {
			merged := state.Merge(state.Accept(), state.AutoResolved(true))
			out := state.Apply(model.Comment{}, merged)

			Convey("Then the extra value is applied", func() {
				So(out.Accepted(), ShouldBeTrue)
				So(out.IsHighlighted, ShouldBeTrue)
				So(out.IsAutoResolved, ShouldBeTrue)
			})
		})
	})
}

func TestForStatus(t *testing.T) {
	Convey("Given decision statuses", t, func() {
		_, ok := state.ForStatus(model.StatusAccept)
		So(ok, ShouldBeTrue)
		_, ok = state.ForStatus(model.DecisionStatus("Bogus"))
		So(ok, ShouldBeFalse)
	})
}
