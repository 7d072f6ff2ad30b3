// Incidentd is a diagnostic aggregation daemon for Kubernetes and
// infrastructure errors.
//
// It classifies raw error text against known failure signatures,
// matches internal runbooks, optionally collects live cluster state,
// and invokes a reasoning engine for a structured diagnosis. Without
// an API key the daemon runs in mock mode and still produces
// deterministic diagnoses.
//
// Usage:
//
//	# Start with defaults (mock mode, runbooks from ./runbooks)
//	incidentd
//
//	# Configure via file and environment
//	incidentd -config /etc/incidentd/config.yaml
//	LLM_API_KEY=... SERVER_PORT=9000 incidentd
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

	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/config"
	"github.com/fyrsmithlabs/incidentd/internal/diagnose"
	api "github.com/fyrsmithlabs/incidentd/internal/http"
	"github.com/fyrsmithlabs/incidentd/internal/llm"
	"github.com/fyrsmithlabs/incidentd/internal/logging"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
	"github.com/fyrsmithlabs/incidentd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  incidentd           Start the incidentd daemon\n")
			fmt.Fprintf(os.Stderr, "  incidentd version   Show version information\n")
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

// printVersion prints version information
func printVersion() {
	fmt.Printf("incidentd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the incidentd server and blocks until the context is
// cancelled. It wires configuration, logging, telemetry, the runbook
// store, the optional cluster collector, the reasoning engine client,
// and the HTTP server, then shuts everything down in reverse order.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "incidentd"},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting incidentd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("mock_mode", !cfg.LLM.APIKey.IsSet()),
	)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if tel.Degraded() {
		logger.Warn("telemetry degraded, continuing without exporters")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Tee log entries to the OTLP exporter when log export is up.
	logger = logging.WithOTEL(logger, tel.LoggerProvider())

	store := runbooks.NewStore(cfg.Runbooks.Dir, logger)
	docs := store.Load(ctx)
	logger.Info("Runbook store ready",
		zap.String("dir", cfg.Runbooks.Dir),
		zap.Int("documents", len(docs)),
	)

	var collector *cluster.Collector
	if cfg.Kubernetes.Enabled {
		collector, err = cluster.NewCollectorFromEnv(&cluster.Config{
			LogTailLines: cfg.Kubernetes.LogTailLines,
			EventLimit:   cfg.Kubernetes.EventLimit,
		}, logger)
		if err != nil {
			logger.Warn("cluster access unavailable, diagnoses proceed without live state", zap.Error(err))
			collector = nil
		}
	}

	var client llm.Client
	if cfg.LLM.APIKey.IsSet() {
		gemini, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey.Value(), llm.Config{
			Model:           cfg.LLM.Model,
			Temperature:     float32(cfg.LLM.Temperature),
			MaxOutputTokens: int32(cfg.LLM.MaxOutputTokens),
		})
		if err != nil {
			return fmt.Errorf("failed to create reasoning engine client: %w", err)
		}
		client = gemini
		logger.Info("Reasoning engine configured", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Warn("no API key configured, running in mock mode")
	}

	diagnoser, err := diagnose.NewService(store, client, logger, cfg.Runbooks.TopK)
	if err != nil {
		return fmt.Errorf("failed to create diagnose service: %w", err)
	}

	srv, err := api.NewServer(diagnoser, store, collector, logger, &api.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		CORSOrigins:   cfg.Server.Origins(),
		RateLimit:     cfg.Server.RateLimit,
		Burst:         cfg.Server.Burst,
		Version:       version,
		LLMConfigured: client != nil,
		TopK:          cfg.Runbooks.TopK,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}
