// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and ASYNCRACE_ env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the record encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// MetricsEnabled turns the Prometheus recorders on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshMS is the period of the gauge updaters.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`

	// Addr configures the HTTP listen address of the track server, e.g. ":3000".
	Addr string `koanf:"addr"`

	// BackendURL is the base URL racectl uses to reach a track server.
	BackendURL string `koanf:"backend_url"`

	// RequestTimeoutMS bounds every remote call made by the HTTP client.
	// Drives last as long as the simulated run, so keep it generous.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// DataDir is the badger directory. Empty keeps data in memory.
	DataDir string `koanf:"data_dir"`

	// GaragePageSize and WinnersPageSize fix the page size of each collection.
	GaragePageSize  int `koanf:"garage_page_size"`
	WinnersPageSize int `koanf:"winners_page_size"`

	// LedgerQueueSize bounds pending win events; LedgerWorkerCount sets the
	// number of workers applying them to the winner ledger.
	LedgerQueueSize   int `koanf:"ledger_queue_size"`
	LedgerWorkerCount int `koanf:"ledger_worker_count"`

	// Engine simulation parameters.
	EngineDistance    float64 `koanf:"engine_distance"`
	EngineMinVelocity float64 `koanf:"engine_min_velocity"`
	EngineMaxVelocity float64 `koanf:"engine_max_velocity"`
	EngineBreakChance float64 `koanf:"engine_break_chance"`
	EngineTimeScale   float64 `koanf:"engine_time_scale"`

	// GenerateCount is the batch size used when generating random vehicles.
	GenerateCount int `koanf:"generate_count"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		MetricsEnabled:    true,
		MetricsRefreshMS:  10_000,
		Addr:              ":3000",
		BackendURL:        "http://127.0.0.1:3000",
		RequestTimeoutMS:  30_000,
		DataDir:           "",
		GaragePageSize:    7,
		WinnersPageSize:   10,
		LedgerQueueSize:   1_000,
		LedgerWorkerCount: runtime.NumCPU(),
		EngineDistance:    500_000,
		EngineMinVelocity: 50,
		EngineMaxVelocity: 200,
		EngineBreakChance: 0.25,
		EngineTimeScale:   1,
		GenerateCount:     100,
	}
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.MetricsRefreshMS < 1:
		return fmt.Errorf("%w: metrics_refresh_ms must be >= 1", ErrInvalidConfig)
	case c.GaragePageSize < 1:
		return fmt.Errorf("%w: garage_page_size must be >= 1", ErrInvalidConfig)
	case c.WinnersPageSize < 1:
		return fmt.Errorf("%w: winners_page_size must be >= 1", ErrInvalidConfig)
	case c.RequestTimeoutMS < 0:
		return fmt.Errorf("%w: request_timeout_ms must not be negative", ErrInvalidConfig)
	case c.EngineDistance <= 0:
		return fmt.Errorf("%w: engine_distance must be > 0", ErrInvalidConfig)
	case c.EngineMinVelocity <= 0 || c.EngineMaxVelocity < c.EngineMinVelocity:
		return fmt.Errorf("%w: engine velocity range must satisfy 0 < min <= max", ErrInvalidConfig)
	case c.EngineBreakChance < 0 || c.EngineBreakChance > 1:
		return fmt.Errorf("%w: engine_break_chance must be within [0,1]", ErrInvalidConfig)
	case c.EngineTimeScale < 0:
		return fmt.Errorf("%w: engine_time_scale must not be negative", ErrInvalidConfig)
	}
	return nil
}
