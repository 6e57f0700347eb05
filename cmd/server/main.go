// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/creditline/internal/api"
	"github.com/tomtom215/creditline/internal/artifact"
	"github.com/tomtom215/creditline/internal/config"
	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/proxy"
	"github.com/tomtom215/creditline/internal/report"
	"github.com/tomtom215/creditline/internal/session"
	"github.com/tomtom215/creditline/internal/supervisor"
	"github.com/tomtom215/creditline/internal/supervisor/services"
	"github.com/tomtom215/creditline/internal/upstream"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("version", version).
		Str("api_base_url", cfg.Upstream.BaseURL).
		Str("token", logging.MaskSecret(cfg.Upstream.Token)).
		Bool("proxy_enabled", cfg.Proxy.Enabled).
		Msg("Starting Creditline")

	sender, err := newSender(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	orchestrator := report.NewOrchestrator(upstream.NewAPI(sender), orchestratorConfig(cfg.Poll))

	store, err := artifact.Open(artifact.Options{
		TTL:           cfg.Artifacts.TTL,
		MaxBytes:      cfg.Artifacts.MaxBytes,
		SealingSecret: cfg.Artifacts.SealingSecret,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open artifact store")
	}

	sessions := session.NewManager(orchestrator, store, session.Config{
		Retention: cfg.Artifacts.TTL,
	})

	var mount api.Mountable
	if cfg.Proxy.Enabled {
		p, err := proxy.New(proxy.Config{
			BaseURL:            cfg.Upstream.BaseURL,
			PathPrefix:         cfg.Proxy.PathPrefix,
			AllowedOrigins:     cfg.Proxy.AllowedOrigins,
			RateLimitRequests:  cfg.Proxy.RateLimitReqs,
			RateLimitWindow:    cfg.Proxy.RateLimitWindow,
			Timeout:            cfg.Upstream.RequestTimeout,
			InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create proxy")
		}
		mount = p
		logging.Info().Str("prefix", p.Prefix()).Strs("origins", cfg.Proxy.AllowedOrigins).Msg("CORS proxy enabled")
	}

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Server.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Server.RateLimitWindow

	router := api.NewRouter(api.NewHandler(sessions, version), api.NewChiMiddleware(mwConfig), mount)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddSessionService(services.NewJanitorService(sessions, services.JanitorConfig{
		Interval: cfg.Artifacts.JanitorInterval,
	}, logging.WithComponent("janitor")))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := sessions.Close(closeCtx); err != nil {
		logging.Error().Err(err).Msg("Error closing report sessions")
	}

	logging.Info().Msg("Creditline stopped")
}

// newSender builds the upstream transport: paced HTTP client, optionally
// behind a circuit breaker.
func newSender(cfg *config.Config) (upstream.Sender, error) {
	client, err := upstream.NewClient(upstream.Options{
		BaseURL:            cfg.Upstream.BaseURL,
		Token:              cfg.Upstream.Token,
		Timeout:            cfg.Upstream.RequestTimeout,
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
		RateLimit:          rate.Limit(cfg.Upstream.RateLimitRPS),
		Burst:              cfg.Upstream.RateLimitBurst,
		MaxBodyBytes:       cfg.Artifacts.MaxBytes,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Breaker.Enabled {
		return client, nil
	}
	return upstream.NewBreakerSender(client, upstream.BreakerSettings{
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	}), nil
}

// orchestratorConfig maps the poll settings onto the workflow. A configured
// initial wait of zero turns the warm-up off.
func orchestratorConfig(p config.PollConfig) report.Config {
	return report.Config{
		MaxAttempts:        p.MaxAttempts,
		PollDelay:          p.Delay,
		InitialWait:        p.InitialWait,
		DisableInitialWait: p.InitialWait == 0,
	}
}
