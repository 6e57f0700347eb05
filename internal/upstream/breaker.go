// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package upstream

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/metrics"
)

// BreakerSettings configures BreakerSender.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings returns 3 half-open probes, a 1 minute window,
// a 2 minute open period and a 60% trip ratio over at least 10 requests.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "credit-report-api",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerSender wraps a Sender with a circuit breaker. Only failures that
// indicate an unhealthy upstream (no response, 429, 5xx) count against it;
// rejected calls are surfaced as *TransportError so callers classify them
// like any other transport failure.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker[*Response]
	name string
}

var _ Sender = (*BreakerSender)(nil)

// NewBreakerSender wraps next.
func NewBreakerSender(next Sender, s BreakerSettings) *BreakerSender {
	if s.Name == "" {
		s.Name = DefaultBreakerSettings().Name
	}
	name := s.Name

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var terr *TransportError
			if errors.As(err, &terr) {
				return !terr.Temporary()
			}
			// encoding errors are the caller's fault, not the upstream's
			return true
		},
	})

	return &BreakerSender{next: next, cb: cb, name: name}
}

// Send forwards req through the breaker.
func (b *BreakerSender) Send(ctx context.Context, req Request) (*Response, error) {
	resp, err := b.cb.Execute(func() (*Response, error) {
		return b.next.Send(ctx, req)
	})
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
		return resp, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("endpoint", endpointName(req.Path)).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, &TransportError{Method: req.Method, URL: req.Path, Cause: err}
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
	return nil, err
}

// State returns the current breaker state name.
func (b *BreakerSender) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
