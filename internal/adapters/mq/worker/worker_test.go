package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/hallpass/internal/adapters/mq/queue"
	worker "github.com/okian/hallpass/internal/adapters/mq/worker"
	model "github.com/okian/hallpass/internal/domain/model"
	logging "github.com/okian/hallpass/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	entries chan queue.Entry
}

func newMockQueue() *mockQueue {
	return &mockQueue{entries: make(chan queue.Entry, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Entry {
	return mq.entries
}

func (mq *mockQueue) add(e queue.Entry) { //nolint:gocritic // hugeParam: entries travel by value
	mq.entries <- e
}

type mockPublisher struct {
	mu        sync.Mutex
	published []string
	failFor   map[string]error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failFor: make(map[string]error)}
}

func (mp *mockPublisher) Name() string { return "mock" }

func (mp *mockPublisher) Publish(_ context.Context, e queue.Entry) error { //nolint:gocritic // hugeParam: entries travel by value
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if err, ok := mp.failFor[e.ID]; ok {
		return err
	}
	mp.published = append(mp.published, e.ID)
	return nil
}

func (mp *mockPublisher) ids() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([]string, len(mp.published))
	copy(out, mp.published)
	return out
}

func entry(id string) queue.Entry {
	return model.LogEntry{
		ID:           id,
		CredentialID: "A1B2C3D4",
		Outcome:      model.OutcomeDenied,
		Reason:       model.ReasonWrongHall,
		TapType:      model.TapDenied,
		Gate:         "ESP32_TENT_1",
		Timestamp:    time.UnixMilli(1_760_000_000_000),
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init(logging.WithOutput(io.Discard))

		q := newMockQueue()
		pub := newMockPublisher()

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, pub, worker.WithName("audit-0"))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, pub)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And entries arrive", func() {
				q.add(entry("e1"))
				q.add(entry("e2"))

				convey.Convey("Then they are published in order", func() {
					ok := waitFor(func() bool { return len(pub.ids()) == 2 })
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(pub.ids(), convey.ShouldResemble, []string{"e1", "e2"})
				})
			})

			convey.Convey("And publishing one entry fails", func() {
				pub.mu.Lock()
				pub.failFor["bad"] = errors.New("broker unavailable")
				pub.mu.Unlock()
				q.add(entry("bad"))
				q.add(entry("good"))

				convey.Convey("Then the worker keeps going", func() {
					ok := waitFor(func() bool { return len(pub.ids()) == 1 })
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(pub.ids(), convey.ShouldResemble, []string{"good"})
				})
			})

			convey.Convey("And it is shut down", func() {
				err := w.Shutdown(context.Background())

				convey.Convey("Then Run returns", func() {
					convey.So(err, convey.ShouldBeNil)
					select {
					case <-w.Done():
					case <-time.After(time.Second):
						convey.So("worker still running", convey.ShouldBeEmpty)
					}
				})
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init(logging.WithOutput(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(128))
		pub := newMockPublisher()
		pool := worker.NewPool(3, q, pub)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When entries are enqueued and the pool shuts down", func() {
			for i := 0; i < 50; i++ {
				convey.So(q.Enqueue(ctx, entry(fmt.Sprintf("e%d", i))), convey.ShouldBeTrue)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every entry is delivered before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(pub.ids()), convey.ShouldEqual, 50)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
