// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("upstream: transport failure")

	// ErrUnexpectedPayload is returned when a 2xx response body does not
	// have the shape an endpoint promises.
	ErrUnexpectedPayload = errors.New("upstream: unexpected response payload")

	// ErrResponseTooLarge is the cause attached when a body exceeds the read limit.
	ErrResponseTooLarge = errors.New("upstream: response body exceeds limit")
)

// TransportError is a network or HTTP-layer failure. Status is zero when no
// HTTP response was received (connection refused, timeout, circuit open).
type TransportError struct {
	Method string
	URL    string
	Status int
	Body   string
	Cause  error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("upstream %s %s failed", e.Method, e.URL)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both ErrTransport and the underlying cause to errors.Is/As.
func (e *TransportError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Cause}
}

// Temporary reports whether retrying the same request could succeed:
// anything without a response, 429, and 5xx.
func (e *TransportError) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
