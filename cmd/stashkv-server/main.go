// Package main provides the entry point for stashkv-server.
//
// stashkv-server is a small in-memory key-value store speaking a
// line-oriented RESP-style protocol, with per-key TTL and a durable
// full-snapshot persistence file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/stashkv/stashkv/internal/infra/buildinfo"
	"github.com/stashkv/stashkv/internal/infra/confloader"
	"github.com/stashkv/stashkv/internal/infra/shutdown"
	"github.com/stashkv/stashkv/internal/server"
	"github.com/stashkv/stashkv/internal/server/config"
	"github.com/stashkv/stashkv/internal/store"
	"github.com/stashkv/stashkv/internal/store/persist"
	"github.com/stashkv/stashkv/internal/store/reaper"
	"github.com/stashkv/stashkv/internal/telemetry/logger"
	"github.com/stashkv/stashkv/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("stashkv-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	logger.SetDefault(log)

	log.Info("starting stashkv-server",
		"version", buildinfo.Get().Version,
		"config", *configFile)

	// Storage: snapshot file behind the in-memory store.
	fileStore, err := persist.NewFileStore(cfg.Storage.SnapshotPath)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}

	metrics := metric.NewRegistry()

	st := store.New(fileStore, store.WithLogger(log), store.WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Rehydrate(ctx); err != nil {
		return fmt.Errorf("rehydrate store: %w", err)
	}

	if cfg.Storage.ReaperEnabled {
		rp := reaper.New(st, cfg.Storage.ReaperInterval, log)
		go rp.Run(ctx)
		log.Info("reaper started", "interval", cfg.Storage.ReaperInterval)
	}

	srv := server.New(&server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, st, metrics, log)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	metricsServer := startMetrics(cfg, metrics, log)

	watcher := startConfigWatcher(*configFile, log)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return srv.Shutdown(ctx)
	})
	if metricsServer != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			return metricsServer.Shutdown(ctx)
		})
	}
	if watcher != nil {
		shutdownHandler.OnShutdown(func(context.Context) error {
			return watcher.Stop()
		})
	}
	shutdownHandler.OnShutdown(func(context.Context) error {
		cancel() // stops the reaper
		return nil
	})

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// startMetrics exposes the Prometheus endpoint when enabled.
func startMetrics(cfg *config.ServerConfig, metrics *metric.Registry, log *slog.Logger) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	go func() {
		log.Info("metrics listening", "addr", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// startConfigWatcher reloads the log level when the config file changes.
func startConfigWatcher(configFile string, log *slog.Logger) *confloader.Watcher {
	if configFile == "" {
		return nil
	}

	watcher, err := confloader.NewWatcher(log)
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := watcher.Watch(configFile); err != nil {
		log.Warn("config watch failed", "error", err)
		_ = watcher.Stop()
		return nil
	}

	watcher.OnChange(func(string) {
		cfg, err := loadConfig(configFile)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher
}
