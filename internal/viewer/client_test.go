package viewer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClientLatest(t *testing.T) {
	Convey("Given a feed server", t, func() {
		var body string
		status := http.StatusOK
		var gotGate string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotGate = r.URL.Query().Get("gate_id")
			if r.URL.Path != "/api/attendance/latest" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()
		c := NewClient(srv.URL+"/", WithRequestTimeout(time.Second))
		ctx := context.Background()

		Convey("When the gate has no entries", func() {
			body = "null\n"
			_, found, err := c.Latest(ctx, "ESP32 HALL A")

			Convey("Then nothing is found", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
				So(gotGate, ShouldEqual, "ESP32 HALL A")
			})
		})

		Convey("When the gate has an entry", func() {
			body = `{"uid":"A1B2C3D4","name":"Ali bin Abu","photo_url":null,"status":"VERIFIED",` +
				`"reason":"Access Granted","tap_type":"ENTRY","timestamp":"2025-10-09T08:53:20.123Z"}`
			it, found, err := c.Latest(ctx, "ESP32_HALL_A")

			Convey("Then it is decoded", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(it.Verified(), ShouldBeTrue)
				So(it.PhotoURL, ShouldBeNil)
				So(it.Timestamp.UnixMilli(), ShouldEqual, 1_760_000_000_123)
			})
		})

		Convey("When the server fails", func() {
			status = http.StatusInternalServerError
			body = `{"message":"Failed to fetch log."}`
			_, _, err := c.Latest(ctx, "G")

			Convey("Then the status is reported", func() {
				So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			})
		})

		Convey("When the payload is malformed", func() {
			body = `{"status":`
			_, _, err := c.Latest(ctx, "G")
			So(errors.Is(err, ErrMalformedItem), ShouldBeTrue)

			body = `{"uid":"A1B2C3D4"}`
			_, _, err = c.Latest(ctx, "G")
			So(errors.Is(err, ErrMalformedItem), ShouldBeTrue)
		})
	})

	Convey("Given a server slower than the request timeout", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := NewClient(srv.URL, WithRequestTimeout(20*time.Millisecond))
		_, _, err := c.Latest(context.Background(), "G")

		Convey("Then the request gives up", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
