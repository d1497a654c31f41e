// livesampler - adaptive live sampling of a camera into a remote classifier.
// Grabs frames at a user-adjustable rate, keeps at most one classification
// in flight, and serves status and controls over HTTP and websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-livesampler/internal/config"
	"github.com/teslashibe/go-livesampler/internal/debug"
	"github.com/teslashibe/go-livesampler/internal/log"
	"github.com/teslashibe/go-livesampler/pkg/app"
)

func main() {
	cfg := parseFlags()

	log.Init(cfg.Log.Level)

	a, err := app.New(cfg, log.L())
	if err != nil {
		stdlog.Fatalf("❌ Configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, a, cfg)
	cancel()
	if err != nil {
		stdlog.Fatalf("❌ %v", err)
	}
}

// run initializes and runs a until ctx is done. Shutdown always happens
// before run returns, so the device is released even on failure.
func run(ctx context.Context, a *app.App, cfg config.Config) error {
	defer a.Shutdown()

	if err := a.Init(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if cfg.Web.Enabled {
		fmt.Printf("🌐 Operator surface on http://localhost:%s (Ctrl+C to exit)\n", cfg.Web.Port)
	}

	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() config.Config {
	configPath := flag.String("config", "", "Path to livesampler.yaml (optional)")
	debugMode := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTicks := flag.Bool("debug-ticks", false, "Log every tick, drop and dispatch (very verbose)")
	mock := flag.Bool("mock", false, "Use the synthetic mock camera")
	port := flag.String("port", "", "Web port (overrides WEB_PORT)")
	apiBase := flag.String("api", "", "Classifier base URL (overrides API_BASE)")
	rate := flag.Int("rate", 0, "Initial sampling rate")
	autostart := flag.Bool("autostart", false, "Start sampling immediately")
	noWeb := flag.Bool("no-web", false, "Disable the web operator surface")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	if *debugMode {
		cfg.Log.Level = "debug"
	}
	if *debugTicks {
		cfg.Log.DebugTicks = true
		cfg.Log.Level = "debug"
	}
	debug.SetEnabled(*debugMode || *debugTicks)
	debug.SetTicks(cfg.Log.DebugTicks)

	if *mock {
		cfg.Device.Backend = app.BackendMock
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *apiBase != "" {
		cfg.Classifier.APIBase = *apiBase
	}
	if *rate != 0 {
		cfg.Sampling.Rate = *rate
	}
	if *autostart {
		cfg.Sampling.Autostart = true
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	return cfg
}
