package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/capspec/config"
	"github.com/c360studio/capspec/processor/validator"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
)

// NewServeCommand creates the serve subcommand: a long-running NATS
// request/reply validation service with a prometheus metrics endpoint.
func NewServeCommand() *cobra.Command {
	var (
		natsURL     string
		subject     string
		baseDir     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation service",
		Long: `Serve listens on a NATS subject for validation requests. Each request
names document paths (confined to the base directory) or carries inline
document content, and receives the full validation report as the reply.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(nil).Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if natsURL != "" {
				cfg.NATS.URL = natsURL
			}
			if subject != "" {
				cfg.NATS.Subject = subject
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			return runServe(cfg, baseDir)
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides config)")
	cmd.Flags().StringVar(&subject, "subject", "", "Request subject (overrides config)")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Base directory for request document paths")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (overrides config)")

	return cmd
}

func runServe(cfg *config.Config, baseDir string) error {
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := connectToNATS(ctx, cfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	comp, err := buildValidator(cfg, baseDir, client, logger)
	if err != nil {
		return err
	}

	if err := comp.Initialize(); err != nil {
		return fmt.Errorf("initialize validator: %w", err)
	}
	if err := comp.Start(ctx); err != nil {
		return fmt.Errorf("start validator: %w", err)
	}

	metricsServer := startMetricsServer(cfg.Metrics.Addr, logger)

	logger.Info("Capspec validation service ready",
		"subject", cfg.NATS.Subject,
		"metrics_addr", cfg.Metrics.Addr)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := comp.Stop(10 * time.Second); err != nil {
		logger.Error("Error stopping validator", "error", err)
	}
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("Capspec shutdown complete")
	return nil
}

// buildValidator constructs the validator component the same way the
// component registry would, from its JSON config.
func buildValidator(cfg *config.Config, baseDir string, client *natsclient.Client, logger *slog.Logger) (*validator.Component, error) {
	compConfig := validator.DefaultConfig()
	compConfig.Ports.Inputs[0].Subject = cfg.NATS.Subject
	compConfig.BaseDir = baseDir
	compConfig.Parallelism = cfg.Validation.Parallelism

	rawConfig, err := json.Marshal(compConfig)
	if err != nil {
		return nil, fmt.Errorf("marshal validator config: %w", err)
	}

	deps := component.Dependencies{
		NATSClient: client,
		Logger:     logger,
	}

	discoverable, err := validator.NewComponent(rawConfig, deps)
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}
	comp, ok := discoverable.(*validator.Component)
	if !ok {
		return nil, fmt.Errorf("unexpected component type %T", discoverable)
	}
	return comp, nil
}

func connectToNATS(ctx context.Context, url string, logger *slog.Logger) (*natsclient.Client, error) {
	// Environment variable override takes precedence
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		url = envURL
	} else if envURL := os.Getenv("CAPSPEC_NATS_URL"); envURL != "" {
		url = envURL
	}

	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName("capspec"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// startMetricsServer exposes /metrics. A nil return means metrics are
// disabled by configuration.
func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()

	return server
}
