package otel

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup(t *testing.T) {
	Convey("Given no endpoint", t, func() {
		before := otel.GetTracerProvider()
		shutdown, err := Setup(context.Background(), "hallpass", "  ")

		Convey("Then tracing stays disabled", func() {
			So(err, ShouldBeNil)
			So(shutdown(context.Background()), ShouldBeNil)
			So(otel.GetTracerProvider(), ShouldEqual, before)
		})
	})

	Convey("Given a collector address", t, func() {
		before := otel.GetTracerProvider()
		defer otel.SetTracerProvider(before)

		shutdown, err := Setup(context.Background(), "hallpass", "127.0.0.1:4318")

		Convey("Then an SDK provider is registered", func() {
			So(err, ShouldBeNil)
			_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
			So(ok, ShouldBeTrue)
			So(shutdown(context.Background()), ShouldBeNil)
		})
	})
}
