package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raikyou/uniapi/pkg/admin"
	"github.com/raikyou/uniapi/pkg/cli"
	"github.com/raikyou/uniapi/pkg/config"
	"github.com/raikyou/uniapi/pkg/configstore"
	"github.com/raikyou/uniapi/pkg/providers"
	"github.com/raikyou/uniapi/pkg/proxy"
	"github.com/raikyou/uniapi/pkg/requestlog"
	"github.com/raikyou/uniapi/pkg/resolver"
	"github.com/raikyou/uniapi/pkg/routing"
	"github.com/raikyou/uniapi/pkg/security/tls"
	"github.com/raikyou/uniapi/pkg/server"
	"github.com/raikyou/uniapi/pkg/telemetry/health"
	"github.com/raikyou/uniapi/pkg/telemetry/logging"
	"github.com/raikyou/uniapi/pkg/telemetry/metrics"
	"github.com/raikyou/uniapi/pkg/telemetry/tracing"
)

var runFlags struct {
	host     string
	port     int
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the uniapi gateway",
	Long: `Start the uniapi gateway with the specified configuration.

The gateway loads its provider document from the config file, hot-reloads it
on change, and serves the caller-facing proxy plus the admin and operational
surfaces on a single listener.

Examples:
  # Start with the default config
  uniapi run

  # Start with a custom config
  uniapi run --config /etc/uniapi/config.yaml

  # Override the listen address
  uniapi run --host 0.0.0.0 --port 9090

  # Validate config without starting the gateway
  uniapi run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.host, "host", "", "override listen host")
	runCmd.Flags().IntVar(&runFlags.port, "port", 0, "override listen port")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	level := cfg.Preferences.LogLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = v
	}
	if runFlags.logLevel != "" {
		level = runFlags.logLevel
	}

	logger, err := logging.New(logging.Config{Level: level, Format: string(logging.FormatJSON)})
	if err != nil {
		return cli.NewConfigError("preferences.log_level", err.Error())
	}
	slog.SetDefault(logger.Slog())

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	listenAddress := listenAddressFromFlags()

	printBanner(cfg, listenAddress)

	store, err := configstore.New(cfgFile, logger.Slog())
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	registry := routing.NewRegistry()
	routingPool := routing.NewPool(registry)

	httpPool, err := providers.NewPool(httpPoolConfig(cfg))
	if err != nil {
		return cli.NewBootstrapError("http client pool", err)
	}

	res := resolver.New(httpPool, registry)

	var mirror *requestlog.Mirror
	var pruner *requestlog.Pruner
	var scheduler *requestlog.Scheduler
	if cfg.Preferences.RequestLogDBPath != "" {
		mirror, err = requestlog.OpenMirror(cfg.Preferences.RequestLogDBPath)
		if err != nil {
			return cli.NewBootstrapError("request log mirror", err)
		}
		defer mirror.Close()

		pruner = requestlog.NewPruner(mirror, requestlog.RetentionConfig{
			RetentionDays: cfg.Preferences.RequestLogRetentionDays,
			Schedule:      cfg.Preferences.RequestLogPruneSchedule,
		}, logger.Slog())
		scheduler = requestlog.NewScheduler(pruner)
	}
	requestLogger := requestlog.New(cfg.Preferences.RequestLogCapacity, mirror, logger.Slog())
	defer requestLogger.Close()

	tracer, err := tracing.New(tracingConfigFromEnv())
	if err != nil {
		return cli.NewBootstrapError("tracing", err)
	}

	engine := proxy.New(store, routingPool, httpPool, res, requestLogger, tracer)
	adminHandler := admin.New(store, routingPool, registry, requestLogger)

	checker := health.New(0)
	checker.RegisterCheck("providers", health.ProviderCheck(store, registry))

	collector := metrics.New()

	var reloader *tls.Reloader
	if cfg.TLS.Enabled {
		reloader, err = tls.NewReloader(cfg.TLS.CertFile, cfg.TLS.KeyFile, logger.Slog())
		if err != nil {
			return cli.NewBootstrapError("tls certificate", err)
		}
	}

	srvConfig := server.DefaultConfig()
	srvConfig.ListenAddress = listenAddress
	srv := server.New(srvConfig, engine, adminHandler, checker, collector, reloader, logger.Slog())

	store.OnInvalidate(func(old, current *configstore.Snapshot) {
		if err := httpPool.Rebuild(httpPoolConfig(current.Doc)); err != nil {
			logger.Error("rebuilding http client pool after config reload", "error", err)
		}
		reconcileDiscoveryCache(registry, old.Doc, current.Doc)

		keep := make(map[string]struct{}, len(current.Doc.Providers))
		for _, pc := range current.Doc.Providers {
			keep[pc.Provider] = struct{}{}
		}
		registry.Prune(keep)

		collector.RecordReload("success")
		logger.Info("configuration reloaded", "providers", len(current.Doc.Providers))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go store.Start(ctx)
	defer store.Stop()

	if reloader != nil {
		go reloader.Run(ctx)
	}
	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			logger.Warn("request log retention scheduler not started", "error", err)
		} else {
			defer scheduler.Stop()
		}
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting http server", "address", listenAddress, "tls", cfg.TLS.Enabled)
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	fmt.Printf("listening on %s\n", listenAddress)
	fmt.Printf("health:  http://%s/health\n", listenAddress)
	fmt.Printf("metrics: http://%s/metrics\n", listenAddress)
	fmt.Println("press ctrl+c to stop")

	shutdownChan := cli.WaitForShutdown()
	select {
	case err := <-errChan:
		return cli.NewBootstrapError("http listener", err)
	case reason := <-shutdownChan:
		fmt.Printf("shutting down: %s\n", reason)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), srvConfig.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return cli.NewBootstrapError("graceful shutdown", err)
		}

		fmt.Println("stopped")
		return nil
	}
}

// listenAddressFromFlags applies the --host/--port overrides from spec.md
// §6 on top of the gateway's default listen address.
func listenAddressFromFlags() string {
	host := "0.0.0.0"
	port := 8080

	if runFlags.host != "" {
		host = runFlags.host
	}
	if runFlags.port != 0 {
		port = runFlags.port
	}

	return host + ":" + strconv.Itoa(port)
}

func httpPoolConfig(cfg *config.Config) providers.PoolConfig {
	poolCfg := providers.DefaultPoolConfig()
	poolCfg.ProxyURL = cfg.Preferences.Proxy
	return poolCfg
}

// reconcileDiscoveryCache clears a provider's cached catalog when its
// configuration entry actually changed across a reload, per spec.md's
// "cached until the owning provider's configuration entry changes".
// Providers absent from old (newly added) are reset as well, which is a
// no-op for their still-empty registry entry.
func reconcileDiscoveryCache(registry *routing.Registry, old, current *config.Config) {
	byName := make(map[string]config.ProviderConfig, len(old.Providers))
	for _, pc := range old.Providers {
		byName[pc.Provider] = pc
	}
	for _, pc := range current.Providers {
		prev, ok := byName[pc.Provider]
		if ok && providerConfigEqual(prev, pc) {
			continue
		}
		registry.Get(pc.Provider).ResetDiscovery()
	}
}

func providerConfigEqual(a, b config.ProviderConfig) bool {
	if a.BaseURL != b.BaseURL || a.APIKey != b.APIKey || a.ModelsEndpoint != b.ModelsEndpoint {
		return false
	}
	if len(a.Model) != len(b.Model) {
		return false
	}
	for i := range a.Model {
		if a.Model[i] != b.Model[i] {
			return false
		}
	}
	return true
}

// tracingConfigFromEnv reads OTEL_* environment variables directly: tracing
// is process-level and set once at startup, unlike the hot-reloadable
// provider document (see DESIGN.md).
func tracingConfigFromEnv() tracing.Config {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg := tracing.Config{
		Enabled:     endpoint != "",
		ServiceName: envOrDefault("OTEL_SERVICE_NAME", "uniapi"),
		Endpoint:    endpoint,
		Insecure:    strings.EqualFold(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), "true"),
		Sampler:     envOrDefault("OTEL_TRACES_SAMPLER", "always"),
		SampleRatio: 1.0,
	}
	if ratio := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); ratio != "" {
		if v, err := strconv.ParseFloat(ratio, 64); err == nil {
			cfg.SampleRatio = v
		}
	}
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printBanner(cfg *config.Config, listenAddress string) {
	fmt.Printf("uniapi v%s\n", Version)
	fmt.Printf("loading configuration from: %s\n", cfgFile)
	fmt.Printf("providers configured: %d\n", len(cfg.Providers))
	fmt.Printf("listen address: %s\n", listenAddress)
}
