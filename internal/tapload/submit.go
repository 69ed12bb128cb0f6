package tapload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hallpass/pkg/logger"
)

// Submit sends taps with a worker pool and returns one result per tap, in
// plan order.
func Submit(ctx context.Context, cfg *Config, client *HTTPClient, taps []Tap, stats *Stats) []Result {
	log := logger.Get().Named("tapload")
	log.Info(ctx, "submitting taps", logger.Int("taps", len(taps)), logger.Int("workers", cfg.Workers))

	results := make([]Result, len(taps))
	var submitted, failed int64

	type job struct {
		index int
		tap   Tap
	}
	jobs := make(chan job, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Progress reporting
	var lastReport atomic.Int64
	const reportInterval = time.Second

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := Result{Tap: j.tap, Kind: j.tap.Kind}
				v, err := client.Tap(ctx, j.tap)
				if err != nil {
					res.Err = err.Error()
					atomic.AddInt64(&failed, 1)
				}
				res.Verdict = v
				results[j.index] = res

				n := atomic.AddInt64(&submitted, 1)
				if cfg.Verbose {
					log.Debug(ctx, "tap", logger.String("uid", j.tap.UID), logger.String("status", v.Status), logger.String("reason", v.Message))
				}
				now := time.Now().UnixNano()
				if last := lastReport.Load(); now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress", logger.Int64("submitted", n), logger.Int("total", len(taps)), logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, t := range taps {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{index: i, tap: t}:
			}
		}
	}()

	wg.Wait()

	stats.TapsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.Failed = int(atomic.LoadInt64(&failed))
	for _, r := range results {
		switch r.Verdict.Status {
		case "VERIFIED":
			stats.Verified++
		case "DENIED":
			stats.Denied++
		case "ERROR":
			stats.Errors++
		}
	}
	return results
}
