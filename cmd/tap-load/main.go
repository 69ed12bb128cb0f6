package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/hallpass/internal/tapload"
	"github.com/okian/hallpass/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		venue       = flag.String("venue", tapload.DefaultVenue, "Gate the generated event is bound to")
		otherGate   = flag.String("other-gate", tapload.DefaultWrongGate, "Gate for the wrong-hall roster")
		credentials = flag.Int("credentials", tapload.DefaultCredentials, "Roster size")
		burst       = flag.Int("burst", tapload.DefaultBurst, "Concurrent taps per credential")
		unknown     = flag.Int("unknown", tapload.DefaultUnknown, "Taps from unregistered cards")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		cooldown    = flag.Duration("cooldown", tapload.DefaultCooldown, "Server cooldown window")
		timeout     = flag.Duration("timeout", tapload.DefaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Write every tap and verdict to this JSON file")
		verbose     = flag.Bool("verbose", false, "Log every tap")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		tapload.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	cfg := &tapload.Config{
		BaseURL:     *baseURL,
		Venue:       *venue,
		WrongGate:   *otherGate,
		Credentials: *credentials,
		Burst:       *burst,
		Unknown:     *unknown,
		Workers:     max(1, *workers),
		Cooldown:    *cooldown,
		Timeout:     *timeout,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if err := tapload.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
