package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hallpass/pkg/logger"
)

func stagedFiles(root string) []string {
	entries, _ := os.ReadDir(filepath.Join(root, stagingDir))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestSnapshotStore(t *testing.T) {
	_ = logger.Init(logger.WithOutput(io.Discard))

	Convey("Given a snapshot store in a temp dir", t, func() {
		ctx := context.Background()
		root := t.TempDir()
		s, err := New(root, WithMaxBytes(16))
		So(err, ShouldBeNil)
		ts := time.UnixMilli(1_760_000_000_000)

		Convey("When an image is staged", func() {
			token, err := s.Stage(ctx, strings.NewReader("jpeg-bytes"))
			So(err, ShouldBeNil)
			So(stagedFiles(root), ShouldHaveLength, 1)

			Convey("Then keeping it publishes it under uid and millis", func() {
				ref, err := s.Keep(ctx, token, "A1B2C3D4", ts)
				So(err, ShouldBeNil)
				So(ref, ShouldEqual, "/live_scans/A1B2C3D4_1760000000000.jpg")
				So(stagedFiles(root), ShouldBeEmpty)

				data, err := os.ReadFile(filepath.Join(root, "A1B2C3D4_1760000000000.jpg"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "jpeg-bytes")

				Convey("And the handler serves it", func() {
					rec := httptest.NewRecorder()
					s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ref, nil))
					So(rec.Code, ShouldEqual, http.StatusOK)
					So(rec.Body.String(), ShouldEqual, "jpeg-bytes")
				})

				Convey("And removing it deletes the file", func() {
					s.Remove(ctx, ref)
					_, err := os.Stat(filepath.Join(root, "A1B2C3D4_1760000000000.jpg"))
					So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
				})
			})

			Convey("Then discarding it leaves nothing behind", func() {
				s.Discard(ctx, token)
				So(stagedFiles(root), ShouldBeEmpty)
			})
		})

		Convey("When a credential has unsafe characters", func() {
			token, err := s.Stage(ctx, strings.NewReader("x"))
			So(err, ShouldBeNil)
			ref, err := s.Keep(ctx, token, "a1:b2/../c3", ts)

			Convey("Then the file name is sanitized", func() {
				So(err, ShouldBeNil)
				So(ref, ShouldEqual, "/live_scans/A1-B2----C3_1760000000000.jpg")
			})
		})

		Convey("When two credentials map to the same file name in one millisecond", func() {
			first, err := s.Stage(ctx, strings.NewReader("first"))
			So(err, ShouldBeNil)
			second, err := s.Stage(ctx, strings.NewReader("second"))
			So(err, ShouldBeNil)

			refA, errA := s.Keep(ctx, first, "A.B", ts)
			refB, errB := s.Keep(ctx, second, "A-B", ts)

			Convey("Then neither image replaces the other", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(refA, ShouldEqual, "/live_scans/A-B_1760000000000.jpg")
				So(refB, ShouldEqual, "/live_scans/A-B_1760000000000_1.jpg")

				data, err := os.ReadFile(filepath.Join(root, "A-B_1760000000000.jpg"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "first")
				data, err = os.ReadFile(filepath.Join(root, "A-B_1760000000000_1.jpg"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "second")
				So(stagedFiles(root), ShouldBeEmpty)
			})

			Convey("And the numbered name is served", func() {
				rec := httptest.NewRecorder()
				s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, refB, nil))
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the upload is too large", func() {
			_, err := s.Stage(ctx, bytes.NewReader(make([]byte, 17)))

			Convey("Then it is refused and not staged", func() {
				So(errors.Is(err, ErrTooLarge), ShouldBeTrue)
				So(stagedFiles(root), ShouldBeEmpty)
			})
		})

		Convey("When the upload is empty", func() {
			_, err := s.Stage(ctx, strings.NewReader(""))

			Convey("Then it is refused", func() {
				So(errors.Is(err, ErrEmpty), ShouldBeTrue)
			})
		})

		Convey("When keeping a bogus token", func() {
			_, err := s.Keep(ctx, "../../etc/passwd", "A1B2C3D4", ts)

			Convey("Then it is rejected as an invalid name", func() {
				So(errors.Is(err, ErrInvalidName), ShouldBeTrue)
			})
		})

		Convey("When requesting a path outside the kept names", func() {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live_scans/.staging/x.part", nil))

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
