package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/moderator/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DatabaseDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.ResendEveryTicks, convey.ShouldEqual, 6)
			convey.So(cfg.ResendBatchSize, convey.ShouldEqual, 100)
			convey.So(cfg.ResendStaleAfter(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.HeartbeatInterval(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the database driver is unknown", func() {
			cfg.DatabaseDriver = "mysql"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When postgres is chosen without a DSN", func() {
			cfg.DatabaseDriver = "postgres"

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a seeded rule has an inverted range", func() {
			cfg.Rules = []config.RuleConfig{{Tag: "TOXICITY", Lower: 0.9, Upper: 0.1, Action: "Reject"}}

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the resend cadence is zero", func() {
			cfg.ResendEveryTicks = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}
