// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package session

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/creditline/internal/artifact"
	"github.com/tomtom215/creditline/internal/report"
	"github.com/tomtom215/creditline/internal/upstream"
)

// maxExchanges bounds the exchange log of one submission.
const maxExchanges = 64

// Transition is one recorded state change.
type Transition struct {
	From report.State `json:"from"`
	To   report.State `json:"to"`
	At   time.Time    `json:"at"`
}

// ArtifactInfo describes the downloadable result of a submission: either a
// stored file or a download URL.
type ArtifactInfo struct {
	ID          string    `json:"id,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	Size        int       `json:"size,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	URL         string    `json:"url,omitempty"`
	Released    bool      `json:"released,omitempty"`
}

// Status is a point-in-time view of a submission.
type Status struct {
	ID          string              `json:"id"`
	SessionKey  string              `json:"-"`
	Request     report.Request      `json:"request"`
	State       report.State        `json:"state"`
	Renewed     bool                `json:"renewed"`
	FileID      string              `json:"file_id,omitempty"`
	Transitions []Transition        `json:"transitions"`
	Exchanges   []upstream.Exchange `json:"exchanges"`
	Artifact    *ArtifactInfo       `json:"artifact,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

// Submission is one workflow run started for a session. It records every
// transition and exchange of the run, and implements report.Observer.
type Submission struct {
	ID         string
	SessionKey string
	Request    report.Request
	CreatedAt  time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	state       report.State
	transitions []Transition
	exchanges   []upstream.Exchange
	dropped     int
	result      report.Result
	err         error
	handle      *artifact.Handle
	link        string
	finishedAt  time.Time
}

var _ report.Observer = (*Submission)(nil)

// OnTransition implements report.Observer.
func (s *Submission) OnTransition(from, to report.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
	s.transitions = append(s.transitions, Transition{From: from, To: to, At: time.Now()})
}

// OnExchange implements report.Observer.
func (s *Submission) OnExchange(ex upstream.Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchanges) >= maxExchanges {
		s.dropped++
		return
	}
	s.exchanges = append(s.exchanges, ex)
}

// Done is closed when the run has finished and its result is recorded.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// State returns the current workflow state.
func (s *Submission) State() report.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, if any.
func (s *Submission) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns a copy of the submission's current state.
func (s *Submission) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:          s.ID,
		SessionKey:  s.SessionKey,
		Request:     s.Request,
		State:       s.state,
		Renewed:     s.result.Renewed,
		FileID:      s.result.FileID,
		Transitions: append([]Transition(nil), s.transitions...),
		Exchanges:   append([]upstream.Exchange(nil), s.exchanges...),
		CreatedAt:   s.CreatedAt,
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		st.FinishedAt = &t
	}
	if s.err != nil {
		st.Error = report.Message(s.err)
	}
	switch {
	case s.handle != nil:
		st.Artifact = &ArtifactInfo{
			ID:          s.handle.ID,
			ContentType: s.handle.Meta.ContentType,
			Filename:    s.handle.Meta.Filename,
			Size:        s.handle.Size,
			ExpiresAt:   s.handle.ExpiresAt,
			Released:    s.handle.Released(),
		}
	case s.link != "":
		st.Artifact = &ArtifactInfo{URL: s.link}
	}
	return st
}

func (s *Submission) finish(res report.Result, err error, h *artifact.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.state = res.State
	s.err = err
	s.handle = h
	if err == nil && res.Artifact.IsLink() {
		s.link = res.Artifact.URL
	}
	s.finishedAt = time.Now()
}

func (s *Submission) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.finishedAt.IsZero()
}

// releaseArtifact releases the stored file, if any.
func (s *Submission) releaseArtifact(reason string) error {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Release(reason)
}
