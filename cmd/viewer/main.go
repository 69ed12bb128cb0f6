// Command viewer shows the latest access decision for one or more gates in
// the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/hallpass/internal/config"
	"github.com/okian/hallpass/internal/viewer"
	"github.com/okian/hallpass/pkg/logger"
)

type options struct {
	server     string
	gates      []string
	interval   time.Duration
	processing time.Duration
	hold       time.Duration
	logLevel   string
}

func parseFlags(cfg *config.Config, args []string) (options, error) {
	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	server := fs.String("server", cfg.ViewerServerURL, "base URL of the hallpass server")
	gates := fs.String("gate", "", "gate id to watch; comma-separated for several")
	interval := fs.Duration("interval", cfg.ViewerPollInterval(), "poll interval (1s-2s)")
	processing := fs.Duration("processing", cfg.ViewerProcessing(), "how long an admit shows as verifying")
	hold := fs.Duration("hold", cfg.ViewerDisplay(), "how long a result stays on screen")
	level := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	o := options{
		server:     *server,
		interval:   *interval,
		processing: *processing,
		hold:       *hold,
		logLevel:   *level,
	}
	for _, g := range strings.Split(*gates, ",") {
		if g = strings.TrimSpace(g); g != "" {
			o.gates = append(o.gates, g)
		}
	}
	switch {
	case len(o.gates) == 0:
		return options{}, fmt.Errorf("at least one -gate is required")
	case o.interval < time.Second || o.interval > 2*time.Second:
		return options{}, fmt.Errorf("-interval must be between 1s and 2s, got %s", o.interval)
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	opts, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	if err := logger.Init(logger.WithOutput(os.Stderr), logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(opts.logLevel)

	if err := run(ctx, opts, viewer.NewTextRenderer(os.Stdout)); err != nil {
		logger.Get().Error(ctx, "viewer exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts one poller per gate and waits for ctx.
func run(ctx context.Context, o options, renderer viewer.Renderer) error { //nolint:gocritic // hugeParam: options is read once
	// Each request must finish before the next tick.
	client := viewer.NewClient(o.server,
		viewer.WithHTTPClient(&http.Client{}),
		viewer.WithRequestTimeout(o.interval*8/10),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, gate := range o.gates {
		d := viewer.NewDisplay(gate, viewer.WithTimings(o.processing, o.hold))
		p := viewer.NewPoller(client, d, renderer, viewer.WithInterval(o.interval))
		g.Go(func() error { return p.Run(gctx) })
	}
	return g.Wait()
}
