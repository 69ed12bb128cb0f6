package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/pkg/logger"
)

func sampleEntry() model.LogEntry {
	return model.LogEntry{
		ID:           "0b6f3c1e-6a7f-4c8e-9a55-4f0b1f4c2d10",
		CredentialID: "A1B2C3D4",
		Outcome:      model.OutcomeVerified,
		Reason:       model.ReasonGranted,
		TapType:      model.TapEntry,
		Gate:         "ESP32_HALL_A",
		Timestamp:    time.UnixMilli(1_760_000_000_123),
		SnapshotRef:  "/live_scans/A1B2C3D4_1760000000123.jpg",
	}
}

func TestEncode(t *testing.T) {
	Convey("Given an admitted entry", t, func() {
		rec, err := encode(sampleEntry())
		So(err, ShouldBeNil)

		Convey("Then the record is keyed by gate and carries the entry as JSON", func() {
			So(string(rec.Key), ShouldEqual, "ESP32_HALL_A")
			So(rec.Timestamp.UnixMilli(), ShouldEqual, 1_760_000_000_123)
			So(rec.Headers, ShouldHaveLength, 1)
			So(string(rec.Headers[0].Value), ShouldEqual, "VERIFIED")

			var got map[string]any
			So(json.Unmarshal(rec.Value, &got), ShouldBeNil)
			So(got["uid"], ShouldEqual, "A1B2C3D4")
			So(got["status"], ShouldEqual, "VERIFIED")
			So(got["tap_type"], ShouldEqual, "ENTRY")
			So(got["timestamp_ms"], ShouldEqual, float64(1_760_000_000_123))
		})
	})
}

func TestNewKafka(t *testing.T) {
	Convey("Given no brokers", t, func() {
		_, err := NewKafka(nil)

		Convey("Then the publisher is not created", func() {
			So(errors.Is(err, ErrNoBrokers), ShouldBeTrue)
		})
	})
}

func TestKafkaUnreachable(t *testing.T) {
	_ = logger.Init(logger.WithOutput(io.Discard))

	Convey("Given a Kafka publisher whose broker never answers", t, func() {
		k, err := NewKafka([]string{"127.0.0.1:1"},
			WithTopic("gate.audit"),
			WithClientID("hallpass-test"),
			WithProduceTimeout(50*time.Millisecond),
			WithCircuitBreaker(1, time.Hour),
			WithKafkaLogger(logger.Get().Named("kafka-test")),
		)
		So(err, ShouldBeNil)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			_ = k.Close(ctx)
		}()

		Convey("When entries are published", func() {
			first := k.Publish(context.Background(), sampleEntry())
			second := k.Publish(context.Background(), sampleEntry())

			Convey("Then the first times out and the open breaker skips the second", func() {
				So(k.topic, ShouldEqual, "gate.audit")
				So(k.timeout, ShouldEqual, 50*time.Millisecond)
				So(first, ShouldNotBeNil)
				So(errors.Is(first, ErrCircuitOpen), ShouldBeFalse)
				So(errors.Is(second, ErrCircuitOpen), ShouldBeTrue)
			})
		})
	})
}

func TestBreaker(t *testing.T) {
	Convey("Given a breaker with threshold 2", t, func() {
		now := time.UnixMilli(0)
		b := newBreaker(2, time.Minute, func() time.Time { return now })

		Convey("When failures reach the threshold", func() {
			b.failure()
			So(b.allow(), ShouldBeTrue)
			b.failure()

			Convey("Then calls are rejected until the cooldown passes", func() {
				So(b.allow(), ShouldBeFalse)
				now = now.Add(time.Minute)
				So(b.allow(), ShouldBeTrue)
			})

			Convey("Then a success closes it again", func() {
				b.success()
				So(b.allow(), ShouldBeTrue)
			})
		})
	})
}

func TestLogPublisher(t *testing.T) {
	Convey("Given a log publisher over a JSON logger", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithOutput(&buf), logger.WithFormat("json")), ShouldBeNil)
		p := NewLog(nil)

		Convey("When an entry is published", func() {
			err := p.Publish(context.Background(), sampleEntry())

			Convey("Then one line with the entry fields is written", func() {
				So(err, ShouldBeNil)
				So(p.Name(), ShouldEqual, "log")
				So(buf.String(), ShouldContainSubstring, `"uid":"A1B2C3D4"`)
				So(buf.String(), ShouldContainSubstring, `"gate":"ESP32_HALL_A"`)
			})
		})
	})
}
