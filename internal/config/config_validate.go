// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinPollAttempts is the smallest poll budget accepted.
	MinPollAttempts = 5

	// MinPollDelay is the smallest delay between poll attempts accepted.
	MinPollDelay = 10 * time.Second
)

var (
	validLogLevels  = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateProxy(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUpstream() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("CREDITLINE_API_BASE_URL is required")
	}
	if err := validateHTTPURL(c.Upstream.BaseURL, "CREDITLINE_API_BASE_URL"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Upstream.Token) == "" {
		return fmt.Errorf("CREDITLINE_TOKEN is required")
	}
	if c.Upstream.RequestTimeout <= 0 {
		return fmt.Errorf("CREDITLINE_REQUEST_TIMEOUT must be positive")
	}
	if c.Upstream.RateLimitRPS < 0 {
		return fmt.Errorf("CREDITLINE_RATE_LIMIT_RPS must not be negative")
	}
	if c.Upstream.RateLimitRPS > 0 && c.Upstream.RateLimitBurst < 1 {
		return fmt.Errorf("CREDITLINE_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.MaxAttempts < MinPollAttempts {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least %d, got %d", MinPollAttempts, c.Poll.MaxAttempts)
	}
	if c.Poll.Delay < MinPollDelay {
		return fmt.Errorf("POLL_DELAY must be at least %s, got %s", MinPollDelay, c.Poll.Delay)
	}
	if c.Poll.InitialWait < 0 {
		return fmt.Errorf("POLL_INITIAL_WAIT must not be negative")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if !c.Breaker.Enabled {
		return nil
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.Breaker.FailureRatio)
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQS must not be negative")
	}
	return nil
}

// validateProxy refuses an implicit wildcard: go-chi/cors treats an empty
// origin list as "allow all", so origins must be listed when the proxy is on.
func (c *Config) validateProxy() error {
	if !c.Proxy.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Proxy.PathPrefix, "/") || c.Proxy.PathPrefix == "/" {
		return fmt.Errorf("PROXY_PATH_PREFIX must start with / and not be the root, got %q", c.Proxy.PathPrefix)
	}
	if len(c.Proxy.AllowedOrigins) == 0 {
		return fmt.Errorf("PROXY_ALLOWED_ORIGINS is required when PROXY_ENABLED=true (use * to allow any origin)")
	}
	for _, origin := range c.Proxy.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validateHTTPURL(origin, "PROXY_ALLOWED_ORIGINS"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	if c.Artifacts.TTL <= 0 {
		return fmt.Errorf("ARTIFACT_TTL must be positive")
	}
	if c.Artifacts.MaxBytes <= 0 {
		return fmt.Errorf("ARTIFACT_MAX_BYTES must be positive")
	}
	if c.Artifacts.JanitorInterval <= 0 {
		return fmt.Errorf("ARTIFACT_JANITOR_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
