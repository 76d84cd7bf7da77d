// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for stashkv-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the protocol listener.
type ServerSection struct {
	// Addr is the TCP listen address.
	Addr string `koanf:"addr"`

	// ReadTimeout bounds reading a single command once it has started.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// IdleTimeout bounds the gap between commands on an open connection.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is the maximum commands per second per client IP.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// StorageSection configures persistence and expiry.
type StorageSection struct {
	// SnapshotPath is the durable snapshot file.
	SnapshotPath string `koanf:"snapshot_path"`

	// ReaperEnabled turns the background expired-entry sweep on.
	ReaperEnabled bool `koanf:"reaper_enabled"`

	// ReaperInterval is the sweep cadence.
	ReaperInterval time.Duration `koanf:"reaper_interval"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
