// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package upstream

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// maxExchangeBodySize bounds the body text kept on an Exchange.
const maxExchangeBodySize = 8 * 1024

// Exchange is the observable record of one request/response pair. Bodies
// have the session token masked; binary bodies are summarized, not copied.
type Exchange struct {
	Endpoint       string        `json:"endpoint"`
	Method         string        `json:"method"`
	URL            string        `json:"url"`
	RequestHeader  http.Header   `json:"request_headers"`
	RequestBody    string        `json:"request_body,omitempty"`
	Status         int           `json:"status"`
	ResponseHeader http.Header   `json:"response_headers,omitempty"`
	ResponseBody   string        `json:"response_body,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ns"`
	Err            string        `json:"error,omitempty"`
}

// ExchangeObserver receives every exchange made with a context it was
// attached to. It must not block.
type ExchangeObserver func(Exchange)

type observerKey struct{}

// WithExchangeObserver attaches fn to ctx. Exchanges sent with the returned
// context (or any child of it) are delivered to fn after they complete.
func WithExchangeObserver(ctx context.Context, fn ExchangeObserver) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

func notifyObserver(ctx context.Context, ex Exchange) {
	if fn, ok := ctx.Value(observerKey{}).(ExchangeObserver); ok && fn != nil {
		fn(ex)
	}
}

// summarizeBody renders a body for display: text is truncated, anything
// binary is replaced by a size note.
func summarizeBody(header http.Header, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if isBinaryContentType(header.Get("Content-Type")) || bytes.HasPrefix(body, []byte("%PDF-")) || !utf8.Valid(body) {
		return fmt.Sprintf("[binary %d bytes]", len(body))
	}
	if len(body) > maxExchangeBodySize {
		cut := maxExchangeBodySize
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		return string(body[:cut]) + fmt.Sprintf("... [truncated, %d bytes total]", len(body))
	}
	return string(body)
}

func isBinaryContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "application/octet-stream" || mediaType == "application/pdf"
}
