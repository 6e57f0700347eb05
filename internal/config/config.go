// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

// Package config loads Creditline configuration from defaults, an optional
// YAML file and environment variables (in that order of precedence, lowest
// first) using koanf.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Poll      PollConfig      `koanf:"poll"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Server    ServerConfig    `koanf:"server"`
	Proxy     ProxyConfig     `koanf:"proxy"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// UpstreamConfig describes the credit-report API.
//
// Environment Variables:
//   - CREDITLINE_API_BASE_URL: base URL of the API (required)
//   - CREDITLINE_TOKEN: session token sent with every request (required, secret)
//   - CREDITLINE_REQUEST_TIMEOUT: per-request timeout (default: 60s)
//   - CREDITLINE_INSECURE_SKIP_VERIFY: skip TLS verification (default: false)
//   - CREDITLINE_RATE_LIMIT_RPS / CREDITLINE_RATE_LIMIT_BURST: outbound pacing, 0 disables
type UpstreamConfig struct {
	BaseURL            string        `koanf:"base_url"`
	Token              string        `koanf:"token"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`
	RateLimitRPS       float64       `koanf:"rate_limit_rps"`
	RateLimitBurst     int           `koanf:"rate_limit_burst"`
}

// PollConfig controls report file polling.
type PollConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Delay       time.Duration `koanf:"delay"`
	InitialWait time.Duration `koanf:"initial_wait"`
}

// BreakerConfig configures the upstream circuit breaker.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins are the browser origins allowed to call the shell API.
	CORSOrigins []string `koanf:"cors_origins"`
}

// ProxyConfig configures the CORS pass-through proxy.
type ProxyConfig struct {
	Enabled         bool          `koanf:"enabled"`
	PathPrefix      string        `koanf:"path_prefix"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// ArtifactsConfig configures the in-memory artifact store.
type ArtifactsConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	MaxBytes        int64         `koanf:"max_bytes"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	// SealingSecret seeds the key that encrypts artifacts at rest in memory.
	// Empty means a random key per process.
	SealingSecret string `koanf:"sealing_secret"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
