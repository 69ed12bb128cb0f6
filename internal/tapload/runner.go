package tapload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/hallpass/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes a complete load run: it creates an event with a generated
// roster, fires the tap plan and verifies the verdicts.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("tapload")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting hallpass tap load",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("venue", cfg.Venue),
		logger.Int("credentials", cfg.Credentials),
		logger.Int("burst", cfg.Burst),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Create the events and their rosters
	roster := GenerateRoster(cfg.Credentials)
	strangers := GenerateRoster(max(1, cfg.Credentials/10))
	title := "Load run " + stats.StartTime.UTC().Format(time.RFC3339)
	if _, err := client.CreateEvent(ctx, title, cfg.Venue, roster); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if _, err := client.CreateEvent(ctx, title+" (other gate)", cfg.WrongGate, strangers); err != nil {
		return fmt.Errorf("create other-gate event: %w", err)
	}

	// Step 3: Fire the tap plan concurrently
	taps := GenerateTaps(cfg, roster, strangers)
	stats.TapsGenerated = len(taps)
	results := Submit(ctx, cfg, client, taps, stats)

	// Step 4: Verify verdicts and the gate history
	verr := Verify(cfg, results)
	if hist, err := client.History(ctx, cfg.Venue, 200); err != nil {
		log.Warn(ctx, "history unavailable", logger.Error(err))
	} else {
		verr = errors.Join(verr, VerifyHistory(hist))
	}

	// Step 5: Save the report
	if cfg.OutputFile != "" {
		if err := saveResults(cfg.OutputFile, results); err != nil {
			log.Warn(ctx, "failed to save results", logger.Error(err))
		} else {
			log.Info(ctx, "results saved", logger.String("file", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verr != nil {
		return verr
	}
	log.Info(ctx, "run completed, all invariants held")
	return nil
}

func saveResults(filename string, results []Result) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var tapsPerSecond, failureRate float64
	if stats.Duration > 0 {
		tapsPerSecond = float64(stats.TapsSubmitted) / stats.Duration.Seconds()
	}
	if stats.TapsSubmitted > 0 {
		failureRate = float64(stats.Failed) / float64(stats.TapsSubmitted) * PercentageMultiplier
	}

	logger.Get().Named("tapload").Info(ctx, "final statistics",
		logger.Int("tapsGenerated", stats.TapsGenerated),
		logger.Int("tapsSubmitted", stats.TapsSubmitted),
		logger.Int("verified", stats.Verified),
		logger.Int("denied", stats.Denied),
		logger.Int("errors", stats.Errors),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("tapsPerSecond", tapsPerSecond),
		logger.Float64("failureRate", failureRate),
	)
}
