// Package main is the entry point for the perpetual funding-rate scanner.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dlemos/perparb/business/market"
	"github.com/dlemos/perparb/business/risk"
	riskDI "github.com/dlemos/perparb/business/risk/di"
	riskdomain "github.com/dlemos/perparb/business/risk/domain"
	"github.com/dlemos/perparb/business/scanner"
	scannerApp "github.com/dlemos/perparb/business/scanner/app"
	scannerDI "github.com/dlemos/perparb/business/scanner/di"
	"github.com/dlemos/perparb/internal/apm"
	"github.com/dlemos/perparb/internal/config"
	"github.com/dlemos/perparb/internal/health"
	"github.com/dlemos/perparb/internal/logger"
	"github.com/dlemos/perparb/internal/metrics"
	"github.com/dlemos/perparb/internal/monolith"
	"github.com/dlemos/perparb/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	mockMode := flag.Bool("mock", false, "Use deterministic mock venues (no network)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("perparb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode, *mockMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode, mockMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Runtime flags override the file
	cfg.Scanner.TUIMode = tuiMode
	if mockMode {
		cfg.Scanner.Mock = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	// In TUI mode logs would corrupt the screen, so discard them.
	var log *logger.Logger
	if tuiMode {
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting perpetual funding scanner",
			"version", version,
			"environment", cfg.App.Environment,
			"mock", cfg.Scanner.Mock,
		)
	}

	// Observability
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log,
			apm.WithProvider(traceProviderFor(cfg.Telemetry.TraceProvider), log))

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	healthServer := health.NewServer(cfg.App.HealthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.App.HealthPort)
	}
	defer healthServer.Stop(ctx)

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Module order: market provides the gateways both other contexts use.
	modules := []monolith.Module{
		&market.Module{},
		&scanner.Module{},
		&risk.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	scn := scannerDI.GetScanner(mono.Services())
	reporter := scannerDI.GetReporter(mono.Services())

	// The risk guard feeds account snapshots to the reporter in the
	// background; scanning never depends on it.
	if cfg.Risk.Enabled {
		guard := riskDI.GetGuard(mono.Services())
		go guard.Run(ctx, func(accounts []riskdomain.AccountState) {
			reporter.UpdateAccounts(accounts)
		})
	}

	if tuiMode {
		return runTUI(ctx, scn, reporter, cfg.Scanner.ScanInterval, log)
	}
	return runCLI(ctx, scn, reporter, cfg.Scanner.ScanInterval, log)
}

// traceProviderFor maps the config value to an apm provider.
func traceProviderFor(name string) apm.Provider {
	switch strings.ToLower(name) {
	case "zipkin":
		return apm.ZipkinProvider
	case "console":
		return apm.ConsoleProvider
	case "collector":
		return apm.CollectorProvider
	default:
		return apm.EmptyProvider
	}
}

// scanOnce runs one cycle and hands the results to the reporter.
func scanOnce(ctx context.Context, scn *scannerApp.Scanner, reporter scannerApp.Reporter, log logger.LoggerInterface) {
	opps, err := scn.Scan(ctx, func(p scannerApp.Progress) {
		reporter.ReportProgress(p)
	})
	if err != nil {
		log.Error(ctx, "scan cycle failed", "error", err)
		return
	}
	reporter.ReportScan(opps)
}

func runCLI(ctx context.Context, scn *scannerApp.Scanner, reporter scannerApp.Reporter, interval time.Duration, log *logger.Logger) error {
	if err := reporter.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reporter: %w", err)
	}
	defer reporter.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		scanOnce(ctx, scn, reporter, log)

		select {
		case <-ctx.Done():
			log.Info(ctx, "shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func runTUI(ctx context.Context, scn *scannerApp.Scanner, reporter scannerApp.Reporter, interval time.Duration, log *logger.Logger) error {
	// Manual rescans from the dashboard share one slot; a request during a
	// running scan coalesces into the next tick.
	rescanCh := make(chan struct{}, 1)
	ui.OnRescan = func() {
		select {
		case rescanCh <- struct{}{}:
		default:
		}
	}

	scanCtx, cancelScans := context.WithCancel(ctx)
	defer cancelScans()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			scanOnce(scanCtx, scn, reporter, log)

			select {
			case <-scanCtx.Done():
				return
			case <-ticker.C:
			case <-rescanCh:
			}
		}
	}()

	// Blocks in the Bubble Tea event loop until the user quits.
	if err := reporter.Start(ctx); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
