// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package api

import (
	"errors"
	"mime"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/middleware"
	"github.com/tomtom215/creditline/internal/report"
	"github.com/tomtom215/creditline/internal/session"
	"github.com/tomtom215/creditline/internal/validation"
)

// maxRequestBody bounds submission bodies.
const maxRequestBody = 64 << 10

// Handler serves the shell API.
type Handler struct {
	sessions  *session.Manager
	startTime time.Time
	version   string
}

// NewHandler creates a Handler.
func NewHandler(sessions *session.Manager, version string) *Handler {
	return &Handler{
		sessions:  sessions,
		startTime: time.Now(),
		version:   version,
	}
}

// FormOptions lists the selectable values of the report form.
type FormOptions struct {
	Countries          []string       `json:"countries"`
	Currencies         []string       `json:"currencies"`
	Languages          []string       `json:"languages"`
	DecisionCurrencies []string       `json:"decision_currencies"`
	Defaults           report.Request `json:"defaults"`
}

// Options returns the form enumerations and defaults.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	defaults := report.DefaultRequest()
	NewResponseWriter(w, r).Success(FormOptions{
		Countries:          report.Countries,
		Currencies:         report.Currencies,
		Languages:          report.Languages,
		DecisionCurrencies: report.DecisionCurrencyOptions(defaults.RequestedLimitCurrency),
		Defaults:           defaults,
	})
}

// DecisionCurrencies returns the decision currencies selectable for the
// requested currency.
func (h *Handler) DecisionCurrencies(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	requested := r.URL.Query().Get("requested")
	if !slices.Contains(report.Currencies, requested) {
		rw.BadRequest("requested must be one of the supported currencies")
		return
	}
	rw.Success(map[string]interface{}{
		"requested": requested,
		"options":   report.DecisionCurrencyOptions(requested),
	})
}

// FormatAmount returns the display and wire forms of an amount.
func (h *Handler) FormatAmount(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	NewResponseWriter(w, r).Success(map[string]string{
		"value":      value,
		"formatted":  report.FormatAmount(value),
		"normalized": report.NormalizeAmount(value),
	})
}

// CreateReport validates a report request and starts a workflow run for the
// caller's session. Fields omitted from the body take the form defaults.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := report.DefaultRequest()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		rw.BadRequest("Request body must be a JSON report request")
		return
	}

	sub, err := h.sessions.Submit(r.Context(), middleware.GetSessionKey(r.Context()), req)
	if err != nil {
		h.writeSubmitError(rw, err)
		return
	}
	rw.Accepted(sub.Status())
}

func (h *Handler) writeSubmitError(rw *ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	case errors.Is(err, report.ErrUnknownCountryCode):
		rw.Error(http.StatusBadRequest, ErrCodeUnsupportedCountry, report.Message(err))
	case errors.Is(err, session.ErrClosed):
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "The service is shutting down.")
	default:
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Report submission failed")
		rw.InternalError(report.Message(err))
	}
}

// owned looks up the {id} submission of the caller's session.
func (h *Handler) owned(r *http.Request) (*session.Submission, error) {
	return h.sessions.Owned(middleware.GetSessionKey(r.Context()), chi.URLParam(r, "id"))
}

// GetReport returns the status of a submission.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sub, err := h.owned(r)
	if err != nil {
		rw.NotFound("Report submission not found")
		return
	}
	rw.Success(sub.Status())
}

// GetArtifact streams the report file, or redirects to its download URL.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sub, err := h.owned(r)
	if err != nil {
		rw.NotFound("Report submission not found")
		return
	}
	content, err := h.sessions.Artifact(sub.ID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		rw.NotFound("Report submission not found")
		return
	case errors.Is(err, session.ErrNotReady):
		rw.Error(http.StatusConflict, ErrCodeConflict, "The report is not ready yet")
		return
	case errors.Is(err, session.ErrNoArtifact):
		rw.Error(http.StatusGone, ErrCodeGone, "No report file is available for this submission")
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to read report file")
		rw.InternalError("Failed to read the report file")
		return
	}

	if content.URL != "" {
		http.Redirect(w, r, content.URL, http.StatusFound)
		return
	}

	contentType := content.Meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if content.Meta.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Meta.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Client went away during report download")
	}
}

// DeleteReport cancels a submission and releases its file.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sub, err := h.owned(r)
	if err != nil {
		rw.NotFound("Report submission not found")
		return
	}
	id := sub.ID
	if err := h.sessions.Delete(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			rw.NotFound("Report submission not found")
			return
		}
		logging.Ctx(r.Context()).Warn().Err(err).Str("submission_id", id).Msg("Failed to release report file")
	}
	rw.Success(map[string]interface{}{"id": id, "deleted": true})
}

// HealthStatus is the liveness payload.
type HealthStatus struct {
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	Uptime      float64 `json:"uptime_seconds"`
	Submissions int     `json:"submissions"`
}

// Health handles liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:      "healthy",
		Version:     h.version,
		Uptime:      time.Since(h.startTime).Seconds(),
		Submissions: h.sessions.Len(),
	})
}
