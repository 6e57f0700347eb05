// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/metrics"
	"github.com/tomtom215/creditline/internal/upstream"
)

// Poller defaults.
const (
	DefaultMaxAttempts = 5
	DefaultPollDelay   = 10 * time.Second
)

// FileFetcher is the step 4 capability the poller needs.
type FileFetcher interface {
	FetchFile(ctx context.Context, fileID string) (*upstream.Response, error)
}

// OutcomeStatus tags a single poll attempt.
type OutcomeStatus int

const (
	// NotReadyYet means poll again after the delay.
	NotReadyYet OutcomeStatus = iota
	// Ready carries the artifact; polling stops.
	Ready
	// Failed is terminal.
	Failed
)

func (s OutcomeStatus) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "not_ready"
	}
}

// Outcome is the evaluated result of one poll attempt.
type Outcome struct {
	Status   OutcomeStatus
	Artifact Artifact
	Reason   error
}

// Evaluate turns a classification into an attempt outcome. A binary body
// or a JSON download link is Ready; anything else, malformed bodies
// included, is NotReadyYet.
func Evaluate(c Classification) Outcome {
	switch c.Kind {
	case KindBinary:
		return Outcome{Status: Ready, Artifact: c.Artifact}
	case KindJSON:
		if c.DownloadURL != "" {
			return Outcome{Status: Ready, Artifact: Artifact{URL: c.DownloadURL}}
		}
		if c.Status != nil && !*c.Status {
			return Outcome{Status: NotReadyYet, Reason: errors.New("file not ready")}
		}
		return Outcome{Status: NotReadyYet, Reason: errors.New("payload carries no readiness signal")}
	default:
		return Outcome{Status: NotReadyYet, Reason: ErrMalformedResponse}
	}
}

// PollerConfig configures a Poller. Zero values take the defaults.
type PollerConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       Sleeper
}

// Poller fetches a report file until it is ready or the attempt budget is spent.
type Poller struct {
	fetcher     FileFetcher
	maxAttempts int
	delay       time.Duration
	sleep       Sleeper
}

// NewPoller creates a Poller.
func NewPoller(fetcher FileFetcher, cfg PollerConfig) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultPollDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	return &Poller{
		fetcher:     fetcher,
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.Delay,
		sleep:       cfg.Sleep,
	}
}

// Poll requests fileID up to MaxAttempts times, sleeping Delay between
// attempts but not after the last one. Transport errors are retried like
// not-ready responses except on the final attempt, where they are returned.
// Exhaustion returns ErrTimeoutExceeded; cancellation returns ErrCancelled.
func (p *Poller) Poll(ctx context.Context, fileID string) (Artifact, error) {
	log := logging.Ctx(ctx)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		last := attempt == p.maxAttempts

		resp, err := awaitCall(ctx, func(c context.Context) (*upstream.Response, error) {
			return p.fetcher.FetchFile(c, fileID)
		})
		switch {
		case errors.Is(err, ErrCancelled):
			return Artifact{}, ErrCancelled

		case err != nil:
			metrics.RecordPollAttempt("transport_error")
			if last {
				metrics.PollAttemptsPerRun.Observe(float64(attempt))
				return Artifact{}, fmt.Errorf("fetch file %s (attempt %d/%d): %w", fileID, attempt, p.maxAttempts, err)
			}
			log.Warn().Err(err).Str("file_id", fileID).Int("attempt", attempt).
				Int("max_attempts", p.maxAttempts).Msg("File fetch failed, retrying")

		default:
			out := Evaluate(Classify(resp))
			if out.Status == Ready {
				artifact := out.Artifact
				if artifact.IsLink() {
					metrics.RecordPollAttempt("link")
				} else {
					metrics.RecordPollAttempt("binary")
					if artifact.Filename == "" {
						artifact.Filename = fileID + ".pdf"
					}
				}
				metrics.PollAttemptsPerRun.Observe(float64(attempt))
				log.Info().Str("file_id", fileID).Int("attempt", attempt).
					Bool("link", artifact.IsLink()).Int("bytes", artifact.Size()).Msg("Report file ready")
				return artifact, nil
			}

			metrics.RecordPollAttempt("not_ready")
			log.Debug().Str("file_id", fileID).Int("attempt", attempt).
				Int("max_attempts", p.maxAttempts).AnErr("reason", out.Reason).Msg("Report file not ready")
		}

		if !last {
			if err := p.sleep(ctx, p.delay); err != nil {
				return Artifact{}, ErrCancelled
			}
		}
	}

	metrics.PollAttemptsPerRun.Observe(float64(p.maxAttempts))
	return Artifact{}, fmt.Errorf("%w: file %s after %d attempts", ErrTimeoutExceeded, fileID, p.maxAttempts)
}
