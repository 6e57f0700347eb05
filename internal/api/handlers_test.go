// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/creditline/internal/artifact"
	"github.com/tomtom215/creditline/internal/report"
	"github.com/tomtom215/creditline/internal/session"
)

// ============================================================================
// Test fixtures
// ============================================================================

type runnerFunc func(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error)

func (f runnerFunc) Run(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error) {
	return f(ctx, req, obs)
}

func pdfResult() report.Result {
	return report.Result{
		State:  report.StateDone,
		FileID: "abc-123",
		Artifact: report.Artifact{
			Data:        []byte("%PDF-1.7 shell test"),
			ContentType: "application/pdf",
			Filename:    "abc-123.pdf",
		},
	}
}

func newTestServer(t *testing.T, run runnerFunc, proxy Mountable) (http.Handler, *session.Manager) {
	t.Helper()
	store, err := artifact.Open(artifact.Options{TTL: time.Minute, SealingSecret: "api-test"})
	if err != nil {
		t.Fatalf("artifact.Open() error = %v", err)
	}
	sessions := session.NewManager(run, store, session.Config{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sessions.Close(ctx)
	})

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://app.example.test"},
		RateLimitDisabled:  true,
	})
	return NewRouter(NewHandler(sessions, "test"), mw, proxy).SetupChi(), sessions
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func waitForState(t *testing.T, sessions *session.Manager, id string) session.Status {
	t.Helper()
	sub, err := sessions.Get(id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("submission %s did not finish", id)
	}
	return sub.Status()
}

const validBody = `{"country":"Russia","company_identifier":"7707083893","requested_limit_currency":"EUR","requested_limit_amount":"1,000,000","decision_currency":"ORIGINAL","language":"English"}`

// ============================================================================
// Options
// ============================================================================

func TestOptions(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/options", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	var opts FormOptions
	if err := json.Unmarshal(env.Data, &opts); err != nil {
		t.Fatalf("decode options: %v", err)
	}
	if len(opts.Countries) != len(report.Countries) || len(opts.Languages) != len(report.Languages) {
		t.Errorf("unexpected enumerations: %+v", opts)
	}
	if opts.Defaults.Country != "Russia" || opts.Defaults.DecisionCurrency != report.DecisionOriginal {
		t.Errorf("defaults = %+v", opts.Defaults)
	}
	if opts.DecisionCurrencies[0] != report.DecisionOriginal {
		t.Errorf("decision currencies should start with ORIGINAL: %v", opts.DecisionCurrencies)
	}
	if rec.Header().Get("X-Session-ID") == "" {
		t.Error("expected X-Session-ID response header")
	}
	if env.Meta == nil || env.Meta.RequestID == "" {
		t.Error("expected request ID in meta")
	}
}

func TestDecisionCurrencies(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/options/decision-currencies?requested=EUR", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Options []string `json:"options"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Options) != len(report.Currencies) {
		t.Errorf("options = %v", data.Options)
	}
	for _, c := range data.Options {
		if c == "EUR" {
			t.Error("requested currency must be excluded")
		}
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/options/decision-currencies?requested=XXX", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown currency status = %d, want 400", rec.Code)
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/amounts/format?value=1234567.5", "", nil)

	var data map[string]string
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data["formatted"] != "1,234,567.5" {
		t.Errorf("formatted = %q", data["formatted"])
	}
	if data["normalized"] != "1234567.5" {
		t.Errorf("normalized = %q", data["normalized"])
	}
}

// ============================================================================
// Reports
// ============================================================================

func TestCreateReport_RunsToArtifact(t *testing.T) {
	t.Parallel()

	var got report.Request
	h, sessions := newTestServer(t, func(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error) {
		got = req
		obs.OnTransition(report.StateIdle, report.StateDone)
		return pdfResult(), nil
	}, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", validBody, map[string]string{"X-Session-ID": "tab-1"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Session-ID") != "tab-1" {
		t.Errorf("session header = %q", rec.Header().Get("X-Session-ID"))
	}

	var st session.Status
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ID == "" {
		t.Errorf("status = %+v", st)
	}
	if strings.Contains(rec.Body.String(), "session_key") {
		t.Errorf("status payload leaks the session key: %s", rec.Body.String())
	}

	final := waitForState(t, sessions, st.ID)
	if final.State != report.StateDone {
		t.Errorf("state = %s", final.State)
	}
	if got.CompanyIdentifier != "7707083893" {
		t.Errorf("runner got %+v", got)
	}

	tab := map[string]string{"X-Session-ID": "tab-1"}
	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/"+st.ID, "", tab)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"done"`) {
		t.Errorf("status body = %s", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/"+st.ID+"/artifact", "", tab)
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Content-Disposition") != `attachment; filename=abc-123.pdf` {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "%PDF-1.7 shell test" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestCreateReport_ValidationError(t *testing.T) {
	t.Parallel()

	h, sessions := newTestServer(t, nil, nil)
	body := strings.Replace(validBody, `"7707083893"`, `"77-07"`, 1)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v", env.Error)
	}
	if !strings.Contains(env.Error.Message, "company_identifier") {
		t.Errorf("message = %q", env.Error.Message)
	}
	if sessions.Len() != 0 {
		t.Error("invalid request must not start a run")
	}
}

func TestCreateReport_SameCurrencyRejected(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)
	body := strings.Replace(validBody, `"decision_currency":"ORIGINAL"`, `"decision_currency":"EUR"`, 1)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateReport_UnsupportedCountry(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)
	body := strings.Replace(validBody, `"Russia"`, `"Japan"`, 1)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != ErrCodeUnsupportedCountry {
		t.Errorf("code = %q", env.Error.Code)
	}
}

func TestCreateReport_MalformedBody(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", `{"country":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetArtifact_States(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h, sessions := newTestServer(t, func(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return report.Result{State: report.StateCancelled}, report.ErrCancelled
		}
		return report.Result{State: report.StateDone, Artifact: report.Artifact{URL: "https://files.example.test/r.pdf"}}, nil
	}, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/reports/missing/artifact", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	tab := map[string]string{"X-Session-ID": "tab-2"}
	rec = doRequest(t, h, http.MethodPost, "/api/v1/reports", validBody, tab)
	var st session.Status
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/"+st.ID+"/artifact", "", tab)
	if rec.Code != http.StatusConflict {
		t.Errorf("running status = %d, want 409", rec.Code)
	}

	close(release)
	waitForState(t, sessions, st.ID)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/"+st.ID+"/artifact", "", tab)
	if rec.Code != http.StatusFound {
		t.Fatalf("link status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://files.example.test/r.pdf" {
		t.Errorf("Location = %q", loc)
	}
}

func TestDeleteReport(t *testing.T) {
	t.Parallel()

	h, sessions := newTestServer(t, func(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error) {
		return pdfResult(), nil
	}, nil)

	tab := map[string]string{"X-Session-ID": "tab-3"}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", validBody, tab)
	var st session.Status
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	waitForState(t, sessions, st.ID)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/reports/"+st.ID, "", tab)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/"+st.ID, "", tab)
	if rec.Code != http.StatusNotFound {
		t.Errorf("after delete status = %d, want 404", rec.Code)
	}
	rec = doRequest(t, h, http.MethodDelete, "/api/v1/reports/"+st.ID, "", tab)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestReports_OtherSessionNotFound(t *testing.T) {
	t.Parallel()

	h, sessions := newTestServer(t, func(ctx context.Context, req report.Request, obs report.Observer) (report.Result, error) {
		return pdfResult(), nil
	}, nil)

	owner := map[string]string{"X-Session-ID": "owner-tab"}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/reports", validBody, owner)
	var st session.Status
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	waitForState(t, sessions, st.ID)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
	}{
		{"status other session", http.MethodGet, "/api/v1/reports/" + st.ID, map[string]string{"X-Session-ID": "other-tab"}},
		{"status no session", http.MethodGet, "/api/v1/reports/" + st.ID, nil},
		{"artifact other session", http.MethodGet, "/api/v1/reports/" + st.ID + "/artifact", map[string]string{"X-Session-ID": "other-tab"}},
		{"delete other session", http.MethodDelete, "/api/v1/reports/" + st.ID, map[string]string{"X-Session-ID": "other-tab"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, "", tt.header)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
		})
	}

	// The owner still sees the untouched submission.
	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/"+st.ID+"/artifact", "", owner)
	if rec.Code != http.StatusOK {
		t.Errorf("owner artifact status = %d, want 200", rec.Code)
	}
}

// ============================================================================
// Health / metrics / proxy mount
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health HealthStatus
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	rec = doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "creditline_http_requests_total") {
		t.Error("metrics output missing creditline_http_requests_total")
	}
}

func TestAPICORS(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/options", "", map[string]string{"Origin": "https://app.example.test"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.test" {
		t.Errorf("allowed origin header = %q", got)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/options", "", map[string]string{"Origin": "https://evil.example.test"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}
}

func TestAPICORS_NoOriginsConfigured(t *testing.T) {
	t.Parallel()

	handler := NewChiMiddleware(nil).CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/options", nil)
	req.Header.Set("Origin", "https://anywhere.example.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers without configured origins, got %q", got)
	}
}

type stubMount struct{}

func (stubMount) Prefix() string { return "/api/proxy" }

func (stubMount) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Stub", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestProxyMount(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(t, nil, stubMount{})
	rec := doRequest(t, h, http.MethodPost, "/api/proxy/get_file?file_uuid=x", "{}", nil)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if rec.Header().Get("X-Stub") != "/api/proxy/get_file" {
		t.Errorf("path seen by proxy = %q", rec.Header().Get("X-Stub"))
	}
}
