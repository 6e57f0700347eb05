// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

// Package session keys report workflow runs by client session.
//
// A session has at most one live submission. Submitting again cancels the
// previous run and releases its artifact. Artifacts are also released on
// explicit delete, on TTL expiry (Sweep) and on Close.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/creditline/internal/artifact"
	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/report"
)

var (
	// ErrNotFound is returned for unknown or deleted submissions.
	ErrNotFound = errors.New("session: submission not found")

	// ErrNotReady is returned when a submission has not finished.
	ErrNotReady = errors.New("session: submission not finished")

	// ErrNoArtifact is returned when a finished submission has no file, or
	// its file has been released.
	ErrNoArtifact = errors.New("session: no artifact available")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: manager is closed")
)

// Runner executes one workflow. *report.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error)
}

var _ Runner = (*report.Orchestrator)(nil)

// Config configures a Manager.
type Config struct {
	// Retention is how long finished submissions stay queryable.
	// Default: 1h
	Retention time.Duration
}

// Manager owns all submissions and their artifacts.
type Manager struct {
	runner    Runner
	store     *artifact.Store
	retention time.Duration

	mu      sync.Mutex
	subs    map[string]*Submission
	current map[string]string // session key -> submission ID
	closed  bool
	wg      sync.WaitGroup
}

// NewManager creates a Manager. The manager takes ownership of store and
// closes it in Close.
func NewManager(runner Runner, store *artifact.Store, cfg Config) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &Manager{
		runner:    runner,
		store:     store,
		retention: cfg.Retention,
		subs:      make(map[string]*Submission),
		current:   make(map[string]string),
	}
}

// Submit validates req and starts a run for sessionKey. An empty session
// key is replaced by a generated one. The previous run of the session, if
// any, is cancelled and its artifact released.
//
// The run is detached from ctx cancellation; only Delete, a newer Submit or
// Close stop it.
func (m *Manager) Submit(ctx context.Context, sessionKey string, req report.Request) (*Submission, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if sessionKey == "" {
		sessionKey = uuid.NewString()
	}

	sub := &Submission{
		ID:         uuid.NewString(),
		SessionKey: sessionKey,
		Request:    req,
		CreatedAt:  time.Now(),
		done:       make(chan struct{}),
		state:      report.StateIdle,
	}
	runCtx := logging.ContextWithSubmissionID(context.WithoutCancel(ctx), sub.ID)
	runCtx, sub.cancel = context.WithCancel(runCtx)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.cancel()
		return nil, ErrClosed
	}
	var prev *Submission
	if prevID, ok := m.current[sessionKey]; ok {
		prev = m.subs[prevID]
	}
	m.subs[sub.ID] = sub
	m.current[sessionKey] = sub.ID
	m.wg.Add(1)
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		if err := prev.releaseArtifact(artifact.ReasonReplaced); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("submission_id", prev.ID).Msg("Failed to release replaced artifact")
		}
		logging.Ctx(ctx).Debug().Str("previous", prev.ID).Str("submission_id", sub.ID).
			Msg("Replacing session submission")
	}

	go m.run(runCtx, sub)

	logging.Ctx(ctx).Info().Str("submission_id", sub.ID).Str("country", req.Country).
		Msg("Report submission accepted")
	return sub, nil
}

func (m *Manager) run(ctx context.Context, sub *Submission) {
	defer m.wg.Done()
	defer close(sub.done)
	defer sub.cancel()

	res, err := m.runner.Run(ctx, sub.Request, sub)

	var h *artifact.Handle
	if err == nil && !res.Artifact.IsLink() {
		var putErr error
		h, putErr = m.store.Put(ctx, res.Artifact.Data, artifact.Meta{
			ContentType: res.Artifact.ContentType,
			Filename:    res.Artifact.Filename,
		})
		if putErr != nil {
			err = fmt.Errorf("store report file: %w", putErr)
			sub.OnTransition(res.State, report.StateFailed)
			res.State = report.StateFailed
			logging.Ctx(ctx).Error().Err(putErr).Msg("Failed to store report file")
		}
	}
	sub.finish(res, err, h)

	m.mu.Lock()
	reason := ""
	switch {
	case m.subs[sub.ID] != sub:
		reason = artifact.ReasonDeleted
	case m.current[sub.SessionKey] != sub.ID:
		reason = artifact.ReasonReplaced
	}
	m.mu.Unlock()

	if reason != "" {
		if err := sub.releaseArtifact(reason); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to release stale artifact")
		}
	}
}

// Get returns the submission with the given ID.
func (m *Manager) Get(id string) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sub, nil
}

// Owned returns the submission with the given ID if it was submitted by
// sessionKey. Submissions of other sessions are reported as ErrNotFound.
func (m *Manager) Owned(sessionKey, id string) (*Submission, error) {
	sub, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if sub.SessionKey != sessionKey {
		return nil, ErrNotFound
	}
	return sub, nil
}

// Current returns the live submission of a session.
func (m *Manager) Current(sessionKey string) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.current[sessionKey]
	if !ok {
		return nil, ErrNotFound
	}
	return m.subs[id], nil
}

// Delete cancels the submission and releases its artifact.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.subs, id)
	if m.current[sub.SessionKey] == id {
		delete(m.current, sub.SessionKey)
	}
	m.mu.Unlock()

	sub.cancel()
	return sub.releaseArtifact(artifact.ReasonDeleted)
}

// Content is a downloadable report file. Either Data or URL is set.
type Content struct {
	Data []byte
	Meta artifact.Meta
	URL  string
}

// Artifact returns the report file of a finished submission.
func (m *Manager) Artifact(id string) (Content, error) {
	sub, err := m.Get(id)
	if err != nil {
		return Content{}, err
	}
	if !sub.finished() {
		return Content{}, ErrNotReady
	}

	sub.mu.Lock()
	h, link := sub.handle, sub.link
	sub.mu.Unlock()

	if link != "" {
		return Content{URL: link}, nil
	}
	if h == nil {
		return Content{}, ErrNoArtifact
	}
	data, err := h.Bytes()
	if errors.Is(err, artifact.ErrNotFound) {
		return Content{}, ErrNoArtifact
	}
	if err != nil {
		return Content{}, err
	}
	return Content{Data: data, Meta: h.Meta}, nil
}

// Len is the number of tracked submissions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Sweep releases expired artifacts and forgets finished submissions older
// than the retention period. It returns the number of released artifacts.
func (m *Manager) Sweep(now time.Time) int {
	released := m.store.Sweep(now)

	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := 0
	for id, sub := range m.subs {
		sub.mu.Lock()
		stale := !sub.finishedAt.IsZero() && now.Sub(sub.finishedAt) > m.retention
		sub.mu.Unlock()
		if !stale {
			continue
		}
		delete(m.subs, id)
		if m.current[sub.SessionKey] == id {
			delete(m.current, sub.SessionKey)
		}
		if err := sub.releaseArtifact(artifact.ReasonExpired); err != nil {
			logging.Warn().Err(err).Str("submission_id", id).Msg("Failed to release expired artifact")
		}
		pruned++
	}
	if released > 0 || pruned > 0 {
		logging.Debug().Int("artifacts", released).Int("submissions", pruned).Msg("Session sweep")
	}
	return released
}

// Close cancels every run, waits for them to finish (bounded by ctx) and
// closes the artifact store.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := make([]*Submission, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("wait for runs: %w", ctx.Err())
	}

	return errors.Join(waitErr, m.store.Close())
}
