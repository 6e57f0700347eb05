// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper releases expired artifacts and prunes finished submissions.
// *session.Manager implements it.
type Sweeper interface {
	Sweep(now time.Time) int
}

// JanitorConfig holds configuration for the janitor service.
type JanitorConfig struct {
	// Interval between sweeps. Default: 1m.
	Interval time.Duration

	// SweepOnStartup runs one sweep before the first tick.
	SweepOnStartup bool
}

// JanitorService sweeps the session manager on a fixed interval.
type JanitorService struct {
	sweeper Sweeper
	config  JanitorConfig
	logger  zerolog.Logger
	now     func() time.Time
	name    string
}

// NewJanitorService creates a janitor service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewJanitorService(sweeper Sweeper, cfg JanitorConfig, logger zerolog.Logger) *JanitorService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &JanitorService{
		sweeper: sweeper,
		config:  cfg,
		logger:  logger.With().Str("service", "janitor").Logger(),
		now:     time.Now,
		name:    "artifact-janitor",
	}
}

// Serve implements suture.Service.
func (s *JanitorService) Serve(ctx context.Context) error {
	s.logger.Debug().Dur("interval", s.config.Interval).Msg("janitor starting")

	if s.config.SweepOnStartup {
		s.sweep()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *JanitorService) sweep() {
	start := s.now()
	if n := s.sweeper.Sweep(start); n > 0 {
		s.logger.Info().
			Int("removed", n).
			Dur("duration", time.Since(start)).
			Msg("janitor released expired report state")
	}
}

// String returns the service name for logging.
func (s *JanitorService) String() string {
	return s.name
}
