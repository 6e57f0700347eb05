// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"errors"
	"fmt"

	"github.com/tomtom215/creditline/internal/upstream"
	"github.com/tomtom215/creditline/internal/validation"
)

var (
	// ErrUpstreamRejected is an explicit false-status business response.
	ErrUpstreamRejected = errors.New("upstream rejected the request")

	// ErrMalformedResponse is a response that is neither a binary artifact
	// nor the JSON shape the step promises.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrTimeoutExceeded means the poller used its whole attempt budget.
	ErrTimeoutExceeded = errors.New("report file was not ready in time")

	// ErrCancelled is user-initiated abandonment. It is a terminal state, not a failure.
	ErrCancelled = errors.New("workflow cancelled")

	// ErrUnknownCountryCode is returned for countries without a known upstream code.
	ErrUnknownCountryCode = errors.New("no upstream code for country")
)

// Message maps a workflow error to the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var verr *validation.RequestValidationError
	var terr *upstream.TransportError

	switch {
	case errors.Is(err, ErrCancelled):
		return "Request cancelled."
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrUnknownCountryCode):
		return "The selected country is not supported by the report service yet."
	case errors.Is(err, ErrTimeoutExceeded):
		return "The report was not ready in time. Please try again later."
	case errors.Is(err, ErrUpstreamRejected):
		return "The report service rejected the request. Check the company code and try again."
	case errors.Is(err, ErrMalformedResponse):
		return "The report service returned an unexpected response."
	case errors.As(err, &terr):
		if terr.Status > 0 {
			return fmt.Sprintf("The report service returned an error (HTTP %d).", terr.Status)
		}
		return "Could not reach the report service."
	default:
		return "An error occurred"
	}
}
