package config

import "errors"

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.SnapshotPath == "" {
		return errors.New("storage.snapshot_path is required")
	}
	if cfg.ReaperEnabled && cfg.ReaperInterval <= 0 {
		return errors.New("storage.reaper_interval must be positive when the reaper is enabled")
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Enabled && cfg.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return errors.New("log.level must be one of debug, info, warn, error")
	}
	switch cfg.Format {
	case "", "json", "text", "console":
	default:
		return errors.New("log.format must be json or text")
	}
	return nil
}
