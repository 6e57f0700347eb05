// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/creditline/internal/logging"
)

type contextKey string

const (
	RequestIDKey  contextKey = "request_id"
	SessionKeyKey contextKey = "session_key"

	// SessionHeader carries the client session key in both directions.
	SessionHeader = "X-Session-ID"

	// maxSessionKeyLen bounds client-supplied session keys.
	maxSessionKeyLen = 128
)

// RequestID generates a unique ID for each request (or keeps the one sent
// by an upstream proxy) and adds it to the response header, the request
// context and the logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)
		ctx = logging.ContextWithNewCorrelationID(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// SessionKey reads the client session key from X-Session-ID, generating one
// when absent or oversized, and echoes it back in the response header.
func SessionKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(SessionHeader)
		if key == "" || len(key) > maxSessionKeyLen {
			key = uuid.New().String()
		}
		w.Header().Set(SessionHeader, key)

		ctx := context.WithValue(r.Context(), SessionKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionKey extracts the session key from context.
func GetSessionKey(ctx context.Context) string {
	if key, ok := ctx.Value(SessionKeyKey).(string); ok {
		return key
	}
	return ""
}
