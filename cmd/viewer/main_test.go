package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/hallpass/internal/config"
	"github.com/okian/hallpass/internal/viewer"
	"github.com/okian/hallpass/pkg/logger"
)

func TestParseFlags(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When gates are given comma-separated", func() {
			o, err := parseFlags(cfg, []string{"-gate", "ESP32_HALL_A, ESP32_TENT_1"})

			convey.Convey("Then config defaults fill the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(o.gates, convey.ShouldResemble, []string{"ESP32_HALL_A", "ESP32_TENT_1"})
				convey.So(o.server, convey.ShouldEqual, "http://localhost:9080")
				convey.So(o.interval, convey.ShouldEqual, time.Second)
				convey.So(o.hold, convey.ShouldEqual, 5*time.Second)
			})
		})

		convey.Convey("When no gate is given", func() {
			_, err := parseFlags(cfg, nil)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the interval is out of range", func() {
			_, err := parseFlags(cfg, []string{"-gate", "G", "-interval", "5s"})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

type collectRenderer struct {
	mu    sync.Mutex
	views []viewer.View
}

func (c *collectRenderer) Render(v viewer.View) { //nolint:gocritic // hugeParam: views travel by value
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = append(c.views, v)
}

func (c *collectRenderer) gates() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]bool{}
	for _, v := range c.views {
		out[v.Gate] = true
	}
	return out
}

func TestRun(t *testing.T) {
	convey.Convey("Given a server with an empty feed", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("null"))
		}))
		defer srv.Close()

		rec := &collectRenderer{}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("When two gates are watched", func() {
			err := run(ctx, options{
				server:   srv.URL,
				gates:    []string{"A", "B"},
				interval: 10 * time.Millisecond,
				hold:     time.Second,
			}, rec)

			convey.Convey("Then each gate renders its idle screen and run ends with ctx", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.gates(), convey.ShouldResemble, map[string]bool{"A": true, "B": true})
			})
		})
	})
}
