// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/creditline/internal/upstream"
)

// ============================================================================
// Assertion helpers
// ============================================================================

func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

func checkTrue(t *testing.T, what string, cond bool) {
	t.Helper()
	if !cond {
		t.Errorf("expected %s", what)
	}
}

func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func checkDeepEqual(t *testing.T, fieldName string, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s: expected %v, got %v", fieldName, want, got)
	}
}

// ============================================================================
// Fakes
// ============================================================================

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type fetchResult struct {
	resp *upstream.Response
	err  error
}

// fakeUpstream scripts the four API steps and records the call order.
type fakeUpstream struct {
	mu    sync.Mutex
	calls []string

	connections []upstream.Credentials
	connErr     error
	connIdx     int

	infoStatus []bool
	infoCreds  []upstream.Credentials
	infoIDs    []upstream.Identity
	infoIdx    int

	// infoStarted is signalled when step 2 begins; step 2 then blocks on
	// infoRelease when it is non-nil.
	infoStarted chan struct{}
	infoRelease chan struct{}

	reportJob    upstream.ReportJob
	reportOK     bool
	reportErr    error
	reportCreds  upstream.Credentials
	reportParams upstream.ReportParams

	files   []fetchResult
	fileIdx int
	fileIDs []string
}

func (f *fakeUpstream) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, step)
}

func (f *fakeUpstream) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeUpstream) GetConnection(_ context.Context) (upstream.Credentials, error) {
	f.record("get_connection")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return upstream.Credentials{}, f.connErr
	}
	i := f.connIdx
	if i >= len(f.connections) {
		i = len(f.connections) - 1
	}
	f.connIdx++
	return f.connections[i], nil
}

func (f *fakeUpstream) PrepareInformation(_ context.Context, creds upstream.Credentials, id upstream.Identity) (bool, error) {
	f.record("prepare_information")
	if f.infoStarted != nil {
		f.infoStarted <- struct{}{}
	}
	if f.infoRelease != nil {
		<-f.infoRelease
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCreds = append(f.infoCreds, creds)
	f.infoIDs = append(f.infoIDs, id)
	i := f.infoIdx
	if i >= len(f.infoStatus) {
		i = len(f.infoStatus) - 1
	}
	f.infoIdx++
	return f.infoStatus[i], nil
}

func (f *fakeUpstream) PrepareReport(_ context.Context, creds upstream.Credentials, _ upstream.Identity, params upstream.ReportParams) (upstream.ReportJob, bool, error) {
	f.record("prepare_report")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCreds = creds
	f.reportParams = params
	return f.reportJob, f.reportOK, f.reportErr
}

func (f *fakeUpstream) FetchFile(_ context.Context, fileID string) (*upstream.Response, error) {
	f.record("get_file")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileIDs = append(f.fileIDs, fileID)
	i := f.fileIdx
	if i >= len(f.files) {
		i = len(f.files) - 1
	}
	f.fileIdx++
	return f.files[i].resp, f.files[i].err
}

// newHappyUpstream returns a fake whose steps all succeed and whose first
// poll yields a PDF.
func newHappyUpstream() *fakeUpstream {
	return &fakeUpstream{
		connections: []upstream.Credentials{{Username: "u1", Password: "p1", QueueName: "q1"}},
		infoStatus:  []bool{true},
		reportJob:   upstream.ReportJob{FileID: "abc-123"},
		reportOK:    true,
		files:       []fetchResult{{resp: pdfResponse()}},
	}
}

func jsonResponse(body string) *upstream.Response {
	return &upstream.Response{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(body),
	}
}

func pdfResponse() *upstream.Response {
	return &upstream.Response{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte("%PDF-1.7\n%binary report"),
	}
}

func validRequest() Request {
	r := DefaultRequest()
	r.CompanyIdentifier = "7707083893"
	r.RequestedLimitAmount = "1,234,567.5"
	return r
}

// recordingObserver captures transitions and exchanges.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []State
	exchanges   []upstream.Exchange
}

func (o *recordingObserver) OnTransition(_, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, to)
}

func (o *recordingObserver) OnExchange(ex upstream.Exchange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exchanges = append(o.exchanges, ex)
}

func (o *recordingObserver) Transitions() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.transitions...)
}
