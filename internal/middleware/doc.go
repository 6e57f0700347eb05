// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

/*
Package middleware provides HTTP middleware for the shell API.

Key Components:

  - RequestID: request and correlation IDs for log tracing
  - SessionKey: the client session key (X-Session-ID) submissions are keyed by
  - PrometheusMetrics: per-route request counts and latency

All middleware here has the chi signature func(http.Handler) http.Handler.
The typical stack is:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics("api"))
	r.With(middleware.SessionKey).Post("/reports", h.CreateReport)
*/
package middleware
