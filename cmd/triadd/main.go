// Triadd is the workflow daemon: it loads configuration, wires the
// model gateways, workspace, terminal, search and event bus into the
// workflow service, and serves the HTTP API.
//
// Configuration is loaded from ~/.config/triad/config.yaml (override
// with --config) plus TRIAD_-prefixed environment variables. See
// internal/config for the full schema.
//
// Usage:
//
//	# Start the daemon with defaults
//	triadd
//
//	# Configure via environment
//	TRIAD_SERVER_PORT=9090 TRIAD_WORKSPACE_ROOT=/srv/work triadd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/config"
	"github.com/fyrsmithlabs/triad/internal/events"
	"github.com/fyrsmithlabs/triad/internal/executor"
	"github.com/fyrsmithlabs/triad/internal/extraction"
	"github.com/fyrsmithlabs/triad/internal/gateway"
	triadhttp "github.com/fyrsmithlabs/triad/internal/http"
	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/runner"
	"github.com/fyrsmithlabs/triad/internal/search"
	"github.com/fyrsmithlabs/triad/internal/services"
	"github.com/fyrsmithlabs/triad/internal/telemetry"
	"github.com/fyrsmithlabs/triad/internal/terminal"
	"github.com/fyrsmithlabs/triad/internal/workflow"
	"github.com/fyrsmithlabs/triad/internal/workspace"
	"github.com/fyrsmithlabs/triad/pkg/secrets"
	"github.com/fyrsmithlabs/triad/pkg/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/triad/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  triadd           Start the triad daemon\n")
			fmt.Fprintf(os.Stderr, "  triadd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("triadd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon together and blocks until ctx is cancelled.
// Initialization order matters: telemetry before logging (the logger
// may export through OTEL), infrastructure before services, services
// before the HTTP surface. Returns nil on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}()

	logger, err := newLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting triadd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("workspace", cfg.Workspace.Root),
		zap.Int("models", len(cfg.Models)),
		zap.Int("agents", len(cfg.Agents)),
	)

	var scrubber *secrets.Scrubber
	if cfg.Secrets.Enabled {
		scrubber, err = secrets.NewScrubber(secrets.Options{
			WorkspacePath: cfg.Workspace.Root,
			UserPath:      cfg.Secrets.ConfigPath,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize secret scrubber: %w", err)
		}
	}

	store, err := workspace.NewStore(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	if cfg.Workspace.Watch {
		watcher, err := workspace.NewWatcher(store, logger)
		if err != nil {
			return fmt.Errorf("failed to create workspace watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start workspace watcher: %w", err)
		}
		defer watcher.Stop()
	}

	var term *terminal.Executor
	if cfg.Terminal.Enabled {
		workDir := cfg.Terminal.WorkDir
		if workDir == "" {
			workDir = cfg.Workspace.Root
		}
		term = terminal.NewExecutor(terminal.Options{
			WorkDir:        workDir,
			Timeout:        cfg.Terminal.Timeout.Duration(),
			MaxConcurrent:  cfg.Terminal.MaxConcurrent,
			MaxOutputBytes: cfg.Terminal.MaxOutputBytes,
			HistorySize:    cfg.Terminal.HistorySize,
		}, logger)
	}

	searcher, err := search.NewProvider(ctx, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("failed to create search provider: %w", err)
	}

	bus, err := events.New(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	wfEvents := events.NewWorkflowEvents(bus, logger)

	gateways := gateway.NewFactory(logger)
	models := workflow.NewModelRegistry(workflow.ModelsFromConfig(cfg.Models))
	agents := workflow.NewAgentRegistry(workflow.AgentsFromConfig(cfg.Agents))

	// A typed nil must not leak into the interface fields; executor and
	// context builder treat a nil terminal as "simulate commands".
	var execTerm executor.Terminal
	var history workspace.HistoryProvider
	if term != nil {
		execTerm = term
		history = term
	}

	exec := executor.NewExecutor(store, execTerm, searcher, logger)
	builder := workspace.NewContextBuilder(store, history, scrubber, logger)

	taskRunner, err := runner.NewRunner(runner.Options{
		Gateways:  gateways,
		Extractor: extraction.NewMarkerExtractor(nil),
		Executor:  exec,
		Context:   builder,
		Events:    wfEvents,
		Scrubber:  scrubber,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create task runner: %w", err)
	}

	workflows, err := services.NewWorkflowService(services.WorkflowOptions{
		Agents:   agents,
		Models:   models,
		Runner:   taskRunner,
		Gateways: gateways,
		Bus:      bus,
		Events:   wfEvents,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create workflow service: %w", err)
	}

	registry, err := services.NewRegistry(services.Options{
		Workflows: workflows,
		Workspace: store,
		Terminal:  term,
		Search:    searcher,
		Bus:       bus,
		Scrubber:  scrubber,
	})
	if err != nil {
		return fmt.Errorf("failed to create service registry: %w", err)
	}
	defer registry.Close()

	srv, err := server.NewServer(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:    cfg.Server.WriteTimeout.Duration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, logger.Underlying())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	api, err := triadhttp.NewAPI(registry.Workflows(), version, logger)
	if err != nil {
		return fmt.Errorf("failed to create API: %w", err)
	}
	api.Register(srv.Echo())

	logger.Info(ctx, "triadd ready",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)))

	if err := srv.Start(ctx); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// telemetryConfig maps the daemon's flat telemetry section onto the
// telemetry package's richer config, keeping its defaults for anything
// the daemon does not surface.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.Endpoint != "" {
		tcfg.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol != "" {
		tcfg.Protocol = cfg.Telemetry.Protocol
	}
	if cfg.Telemetry.ServiceName != "" {
		tcfg.ServiceName = cfg.Telemetry.ServiceName
	}
	tcfg.ServiceVersion = version
	tcfg.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.SampleRate > 0 {
		tcfg.Sampling.Rate = cfg.Telemetry.SampleRate
	}
	return tcfg
}

// newLogger maps the daemon's flat logging section onto the logging
// package config. OTEL log export follows telemetry being enabled.
func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if cfg.Logging.Level != "" {
		level, err := logging.LevelFromString(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
		logCfg.Level = level
	}
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	logCfg.Output.OTEL = tel.IsEnabled()

	return logging.NewLogger(logCfg, tel.LoggerProvider())
}
