package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/internal/logger"
	"github.com/melosso/portway/internal/telemetry"
	"github.com/melosso/portway/pkg/authcore"
	"github.com/melosso/portway/pkg/dispatcher"
	"github.com/melosso/portway/pkg/envregistry"
	"github.com/melosso/portway/pkg/metrics"
	"github.com/melosso/portway/pkg/registry"
	"github.com/melosso/portway/pkg/statichandler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Portway gateway server",
	Long: `Start the Portway gateway server with the specified configuration.

Examples:
  # Start with default config location
  portway serve

  # Start with a custom config
  portway serve --config /etc/portway/config.yaml

  # Override a setting via environment variable
  PORTWAY_LOGGING_LEVEL=DEBUG portway serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "portway",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}

	tokenStore, err := authcore.NewStore(cfg.TokenStore)
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	envs, err := envregistry.New(ctx, cfg.Environments)
	if err != nil {
		return fmt.Errorf("failed to initialize environment registry: %w", err)
	}
	defer envs.Close()

	reg, err := registry.New(cfg.Descriptors.Root)
	if err != nil {
		return fmt.Errorf("failed to load endpoint descriptors: %w", err)
	}
	if errs := reg.Current().Errors(); len(errs) > 0 {
		for _, e := range errs {
			logger.Warn("descriptor load error", "path", e.Path, "error", e.Err)
		}
	}
	logger.Info("endpoint registry loaded", "endpoints", len(reg.Current().All()))

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	debounce := cfg.Descriptors.DebounceDelay
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	go func() {
		if err := reg.Watch(watchCtx, debounce); err != nil && watchCtx.Err() == nil {
			logger.Error("descriptor watch stopped", "error", err)
		}
	}()

	fileStore, err := buildFileStore(ctx, cfg.Files)
	if err != nil {
		return fmt.Errorf("failed to initialize file store: %w", err)
	}

	promReg := prometheus.NewRegistry()
	gatewayMetrics := metrics.New(promReg)

	d := &dispatcher.Dispatcher{
		Registry:    reg,
		Envs:        envs,
		TokenStore:  tokenStore,
		Files:       fileStore,
		Metrics:     gatewayMetrics,
		ProxyConfig: cfg.Proxy,
		Prefix:      cfg.Server.PathPrefix,
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      dispatcher.NewRouter(d),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(promReg))
		metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", cfg.Server.Address, "path_prefix", cfg.Server.PathPrefix)
		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		serverDone <- err
	}()

	if metricsServer != nil {
		go func() {
			logger.Info("metrics server listening", "address", cfg.Metrics.Address)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		<-serverDone
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

func buildFileStore(ctx context.Context, cfg config.FilesConfig) (statichandler.FileStore, error) {
	switch cfg.Backend {
	case "s3":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
		if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
				cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return &statichandler.S3Store{Client: client, Bucket: cfg.S3.Bucket, Prefix: cfg.S3.Prefix}, nil
	default:
		root := cfg.Root
		if root == "" {
			root = "./data/files"
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create file storage root: %w", err)
		}
		return &statichandler.FilesystemStore{Root: root}, nil
	}
}
