// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

/*
workflow.go - Four-step report workflow

The orchestrator drives one submission through:

	Idle -> ConnectingBroker -> SubmittingInformation
	     -> (RenewingBroker -> ResubmittingInformation)?
	     -> RequestingReport -> AwaitingArtifact -> Done | Failed | Cancelled

Steps run strictly in sequence. Step 2 is retried once with fresh broker
credentials when it reports status=false; steps 1 and 3 are never retried;
step 4 is delegated to the Poller.

Cancellation is sampled before and after every network call and during
every wait. Requests already sent are left to complete on a detached
context and their results are discarded.
*/

package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/metrics"
	"github.com/tomtom215/creditline/internal/upstream"
)

// DefaultInitialWait is the warm-up before the first file poll.
const DefaultInitialWait = 60 * time.Second

// State is a workflow state.
type State int

const (
	StateIdle State = iota
	StateConnectingBroker
	StateSubmittingInformation
	StateRenewingBroker
	StateResubmittingInformation
	StateRequestingReport
	StateAwaitingArtifact
	StateDone
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:                    "idle",
	StateConnectingBroker:        "connecting_broker",
	StateSubmittingInformation:   "submitting_information",
	StateRenewingBroker:          "renewing_broker",
	StateResubmittingInformation: "resubmitting_information",
	StateRequestingReport:        "requesting_report",
	StateAwaitingArtifact:        "awaiting_artifact",
	StateDone:                    "done",
	StateFailed:                  "failed",
	StateCancelled:               "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", text)
}

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Observer receives every transition and every upstream exchange of a run.
// It is called synchronously for transitions and must not block.
type Observer interface {
	OnTransition(from, to State)
	OnExchange(ex upstream.Exchange)
}

// Upstream is the capability the orchestrator drives. *upstream.API
// implements it.
type Upstream interface {
	FileFetcher
	GetConnection(ctx context.Context) (upstream.Credentials, error)
	PrepareInformation(ctx context.Context, creds upstream.Credentials, id upstream.Identity) (bool, error)
	PrepareReport(ctx context.Context, creds upstream.Credentials, id upstream.Identity, params upstream.ReportParams) (upstream.ReportJob, bool, error)
}

var _ Upstream = (*upstream.API)(nil)

// Config configures an Orchestrator. Zero values take the defaults.
type Config struct {
	MaxAttempts int
	PollDelay   time.Duration
	InitialWait time.Duration

	// DisableInitialWait skips the warm-up before the first poll.
	// InitialWait is ignored when set.
	DisableInitialWait bool

	Sleep Sleeper
}

// Orchestrator runs report workflows. It holds no per-run state and is safe
// for concurrent use.
type Orchestrator struct {
	api         Upstream
	poller      *Poller
	initialWait time.Duration
	sleep       Sleeper
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(api Upstream, cfg Config) *Orchestrator {
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	wait := cfg.InitialWait
	switch {
	case cfg.DisableInitialWait:
		wait = 0
	case wait == 0:
		wait = DefaultInitialWait
	}
	return &Orchestrator{
		api: api,
		poller: NewPoller(api, PollerConfig{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.PollDelay,
			Sleep:       cfg.Sleep,
		}),
		initialWait: wait,
		sleep:       cfg.Sleep,
	}
}

// Result is the terminal outcome of a run.
type Result struct {
	State    State
	FileID   string
	Renewed  bool
	Artifact Artifact
}

// run tracks one submission.
type run struct {
	state   State
	obs     Observer
	log     *zerolog.Logger
	fileID  string
	renewed bool
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	r.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Workflow transition")
	if r.obs != nil {
		r.obs.OnTransition(from, to)
	}
}

// Run executes the workflow for req. The returned Result always carries a
// terminal state; the error is nil only for StateDone and is ErrCancelled
// for StateCancelled. obs may be nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, obs Observer) (Result, error) {
	start := time.Now()
	metrics.WorkflowsActive.Inc()
	defer metrics.WorkflowsActive.Dec()

	if obs != nil {
		ctx = upstream.WithExchangeObserver(ctx, obs.OnExchange)
	}
	r := &run{state: StateIdle, obs: obs, log: logging.Ctx(ctx)}

	artifact, err := o.execute(ctx, r, req)

	var outcome string
	switch {
	case err == nil:
		r.transition(StateDone)
		outcome = "done"
		r.log.Info().Str("file_id", r.fileID).Bool("renewed", r.renewed).
			Dur("elapsed", time.Since(start)).Msg("Report workflow completed")
	case errors.Is(err, ErrCancelled):
		at := r.state
		r.transition(StateCancelled)
		outcome = "cancelled"
		r.log.Info().Str("at", at.String()).Msg("Report workflow cancelled")
	default:
		r.transition(StateFailed)
		outcome = "failed"
		r.log.Error().Err(err).Str("file_id", r.fileID).Msg("Report workflow failed")
	}
	metrics.RecordWorkflowFinished(outcome, time.Since(start))

	return Result{State: r.state, FileID: r.fileID, Renewed: r.renewed, Artifact: artifact}, err
}

func (o *Orchestrator) execute(ctx context.Context, r *run, req Request) (Artifact, error) {
	identity, err := req.Identity()
	if err != nil {
		return Artifact{}, err
	}
	params := req.Params()

	r.transition(StateConnectingBroker)
	creds, err := awaitCall(ctx, o.api.GetConnection)
	if err != nil {
		return Artifact{}, stepError("get broker connection", err)
	}

	r.transition(StateSubmittingInformation)
	accepted, err := o.submitInformation(ctx, creds, identity)
	if err != nil {
		return Artifact{}, stepError("prepare information", err)
	}

	if !accepted {
		r.renewed = true
		metrics.WorkflowRenewals.Inc()
		r.log.Info().Msg("Information rejected, renewing broker connection")

		r.transition(StateRenewingBroker)
		creds, err = awaitCall(ctx, o.api.GetConnection)
		if err != nil {
			return Artifact{}, stepError("renew broker connection", err)
		}

		r.transition(StateResubmittingInformation)
		accepted, err = o.submitInformation(ctx, creds, identity)
		if err != nil {
			return Artifact{}, stepError("resubmit information", err)
		}
		if !accepted {
			return Artifact{}, fmt.Errorf("%w: information rejected after broker renewal", ErrUpstreamRejected)
		}
	}

	r.transition(StateRequestingReport)
	job, err := o.requestReport(ctx, creds, identity, params)
	if err != nil {
		return Artifact{}, err
	}
	r.fileID = job.FileID

	r.transition(StateAwaitingArtifact)
	if o.initialWait > 0 {
		if err := o.sleep(ctx, o.initialWait); err != nil {
			return Artifact{}, ErrCancelled
		}
	}

	artifact, err := o.poller.Poll(ctx, job.FileID)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return Artifact{}, err
		}
		return Artifact{}, fmt.Errorf("await report file: %w", err)
	}
	return artifact, nil
}

func (o *Orchestrator) submitInformation(ctx context.Context, creds upstream.Credentials, id upstream.Identity) (bool, error) {
	return awaitCall(ctx, func(c context.Context) (bool, error) {
		return o.api.PrepareInformation(c, creds, id)
	})
}

type preparedReport struct {
	job upstream.ReportJob
	ok  bool
}

func (o *Orchestrator) requestReport(ctx context.Context, creds upstream.Credentials, id upstream.Identity, params upstream.ReportParams) (upstream.ReportJob, error) {
	p, err := awaitCall(ctx, func(c context.Context) (preparedReport, error) {
		job, ok, err := o.api.PrepareReport(c, creds, id, params)
		return preparedReport{job: job, ok: ok}, err
	})
	if err != nil {
		return upstream.ReportJob{}, stepError("prepare report", err)
	}
	if !p.ok {
		return upstream.ReportJob{}, fmt.Errorf("%w: report request rejected", ErrUpstreamRejected)
	}
	return p.job, nil
}

// stepError adds step context and maps payload errors onto ErrMalformedResponse.
func stepError(step string, err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, upstream.ErrUnexpectedPayload) {
		return fmt.Errorf("%s: %w: %w", step, ErrMalformedResponse, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}
