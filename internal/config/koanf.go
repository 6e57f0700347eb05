// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/creditline/config.yaml",
	"/etc/creditline/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied before file and env.
func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:        "",
			Token:          "",
			RequestTimeout: 60 * time.Second,
			RateLimitRPS:   5,
			RateLimitBurst: 5,
		},
		Poll: PollConfig{
			MaxAttempts: 5,
			Delay:       10 * time.Second,
			InitialWait: 60 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      2 * time.Minute,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{},
		},
		Proxy: ProxyConfig{
			Enabled:         false,
			PathPrefix:      "/api/proxy",
			AllowedOrigins:  []string{},
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Artifacts: ArtifactsConfig{
			TTL:             time.Hour,
			MaxBytes:        50 << 20,
			JanitorInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// CREDITLINE_API_BASE_URL -> upstream.base_url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"proxy.allowed_origins",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment cannot leak in.
var envMappings = map[string]string{
	"creditline_api_base_url":         "upstream.base_url",
	"creditline_token":                "upstream.token",
	"creditline_request_timeout":      "upstream.request_timeout",
	"creditline_insecure_skip_verify": "upstream.insecure_skip_verify",
	"creditline_rate_limit_rps":       "upstream.rate_limit_rps",
	"creditline_rate_limit_burst":     "upstream.rate_limit_burst",

	"poll_max_attempts": "poll.max_attempts",
	"poll_delay":        "poll.delay",
	"poll_initial_wait": "poll.initial_wait",

	"breaker_enabled":       "breaker.enabled",
	"breaker_max_requests":  "breaker.max_requests",
	"breaker_interval":      "breaker.interval",
	"breaker_timeout":       "breaker.timeout",
	"breaker_min_requests":  "breaker.min_requests",
	"breaker_failure_ratio": "breaker.failure_ratio",

	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"rate_limit_reqs":    "server.rate_limit_reqs",
	"rate_limit_window":  "server.rate_limit_window",
	"cors_origins":       "server.cors_origins",

	"proxy_enabled":           "proxy.enabled",
	"proxy_path_prefix":       "proxy.path_prefix",
	"proxy_allowed_origins":   "proxy.allowed_origins",
	"proxy_rate_limit_reqs":   "proxy.rate_limit_reqs",
	"proxy_rate_limit_window": "proxy.rate_limit_window",

	"artifact_ttl":              "artifacts.ttl",
	"artifact_max_bytes":        "artifacts.max_bytes",
	"artifact_janitor_interval": "artifacts.janitor_interval",
	"artifact_sealing_secret":   "artifacts.sealing_secret",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf paths.
//
// Examples:
//   - CREDITLINE_TOKEN -> upstream.token
//   - POLL_DELAY -> poll.delay
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
