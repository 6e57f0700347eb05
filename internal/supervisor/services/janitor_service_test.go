// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

type recordingSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	swept chan struct{}
}

func newRecordingSweeper() *recordingSweeper {
	return &recordingSweeper{swept: make(chan struct{}, 16)}
}

func (r *recordingSweeper) Sweep(now time.Time) int {
	r.mu.Lock()
	r.calls = append(r.calls, now)
	r.mu.Unlock()
	select {
	case r.swept <- struct{}{}:
	default:
	}
	return 1
}

func (r *recordingSweeper) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var _ suture.Service = (*JanitorService)(nil)

func TestNewJanitorService_DefaultInterval(t *testing.T) {
	svc := NewJanitorService(newRecordingSweeper(), JanitorConfig{}, zerolog.Nop())
	if svc.config.Interval != time.Minute {
		t.Errorf("expected default interval 1m, got %v", svc.config.Interval)
	}
	if svc.String() != "artifact-janitor" {
		t.Errorf("unexpected name %q", svc.String())
	}
}

func TestJanitorService_SweepsOnInterval(t *testing.T) {
	sweeper := newRecordingSweeper()
	svc := NewJanitorService(sweeper, JanitorConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-sweeper.swept:
		case <-time.After(time.Second):
			t.Fatalf("sweep %d did not happen", i+1)
		}
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestJanitorService_SweepOnStartup(t *testing.T) {
	sweeper := newRecordingSweeper()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewJanitorService(sweeper, JanitorConfig{Interval: time.Hour, SweepOnStartup: true}, zerolog.Nop())
	svc.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-sweeper.swept:
	case <-time.After(time.Second):
		t.Fatal("startup sweep did not happen")
	}
	cancel()
	<-errCh

	if sweeper.count() != 1 {
		t.Errorf("expected exactly one sweep, got %d", sweeper.count())
	}
	if !sweeper.calls[0].Equal(fixed) {
		t.Errorf("sweep time = %v, want %v", sweeper.calls[0], fixed)
	}
}
