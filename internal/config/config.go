// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

// Package config defines the server configuration and loads it from layered
// sources: built-in defaults, an optional YAML file, and CALLEJERO_*
// environment variables, with the environment taking precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Routing RoutingConfig `koanf:"routing"`
	Session SessionConfig `koanf:"session"`
	Crowd   CrowdConfig   `koanf:"crowd"`
}

// ServerConfig covers the HTTP listener and its middleware.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig covers the zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RoutingConfig covers the routing engine and its result cache.
type RoutingConfig struct {
	// SegmentsFile is an optional JSON street-segment snapshot. Empty
	// means the built-in landmark fallback graph.
	SegmentsFile    string        `koanf:"segments_file"`
	MaxWalkKm       float64       `koanf:"max_walk_km"`
	MaxDetourRatio  float64       `koanf:"max_detour_ratio"`
	ETAFloorSeconds int           `koanf:"eta_floor_seconds"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
}

// SessionConfig covers the streaming session policy.
type SessionConfig struct {
	UpdatesPerSecond        float64       `koanf:"updates_per_second"`
	UpdateBurst             int           `koanf:"update_burst"`
	MovementThresholdMeters float64       `koanf:"movement_threshold_meters"`
	RouteRetention          time.Duration `koanf:"route_retention"`
}

// CrowdConfig covers crowd report intake and aggregation.
type CrowdConfig struct {
	PruneInterval   time.Duration `koanf:"prune_interval"`
	ReportLimitReqs int           `koanf:"report_limit_reqs"`
	ReportLimitWin  time.Duration `koanf:"report_limit_window"`
}

// defaultConfig returns the built-in defaults, applied before the file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8437,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Routing: RoutingConfig{
			SegmentsFile:    "",
			MaxWalkKm:       10,
			MaxDetourRatio:  1.5,
			ETAFloorSeconds: 60,
			CacheTTL:        10 * time.Minute,
		},
		Session: SessionConfig{
			UpdatesPerSecond:        1,
			UpdateBurst:             3,
			MovementThresholdMeters: 80,
			RouteRetention:          30 * time.Minute,
		},
		Crowd: CrowdConfig{
			PruneInterval:   time.Minute,
			ReportLimitReqs: 10,
			ReportLimitWin:  time.Minute,
		},
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}

	if c.Routing.MaxWalkKm <= 0 {
		return fmt.Errorf("routing.max_walk_km must be positive")
	}
	if c.Routing.MaxDetourRatio < 1 {
		return fmt.Errorf("routing.max_detour_ratio must be at least 1")
	}
	if c.Routing.ETAFloorSeconds < 0 {
		return fmt.Errorf("routing.eta_floor_seconds must not be negative")
	}
	if c.Routing.CacheTTL <= 0 {
		return fmt.Errorf("routing.cache_ttl must be positive")
	}

	if c.Session.UpdatesPerSecond <= 0 {
		return fmt.Errorf("session.updates_per_second must be positive")
	}
	if c.Session.MovementThresholdMeters <= 0 {
		return fmt.Errorf("session.movement_threshold_meters must be positive")
	}
	if c.Session.RouteRetention <= 0 {
		return fmt.Errorf("session.route_retention must be positive")
	}

	if c.Crowd.PruneInterval <= 0 {
		return fmt.Errorf("crowd.prune_interval must be positive")
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
