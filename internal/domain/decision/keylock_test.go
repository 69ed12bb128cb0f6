package decision

import (
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKeyLock(t *testing.T) {
	Convey("Given a key lock", t, func() {
		k := newKeyLock()

		Convey("When many goroutines contend on one key", func() {
			var (
				inside, maxInside int32
				wg                sync.WaitGroup
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := k.Lock("A1B2C3D4")
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()

			Convey("Then only one holds it at a time and the entry is released", func() {
				So(maxInside, ShouldEqual, 1)
				So(k.held(), ShouldEqual, 0)
			})
		})

		Convey("When different keys are locked", func() {
			a := k.Lock("A")
			b := k.Lock("B")

			Convey("Then neither blocks the other", func() {
				So(k.held(), ShouldEqual, 2)
				a()
				b()
				So(k.held(), ShouldEqual, 0)
			})
		})
	})
}
