// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

// Package api is the HTTP shell over the report workflow: form options,
// report submission and status, artifact download, plus health, metrics
// and the optional CORS proxy mount.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/creditline/internal/middleware"
)

// Mountable is a handler served under its own path prefix.
// *proxy.Proxy implements it.
type Mountable interface {
	Prefix() string
	Handler() http.Handler
}

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	proxy         Mountable
}

// NewRouter creates a Router. mw may be nil for the defaults; proxy may be
// nil when the proxy is disabled.
func NewRouter(handler *Handler, mw *ChiMiddleware, proxy Mountable) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw, proxy: proxy}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// The proxy carries its own CORS policy and rate limit.
	if router.proxy != nil {
		r.Mount(router.proxy.Prefix(), router.proxy.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.CORS())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics("api:"))

		// ========================
		// Health / Metrics
		// ========================
		r.With(router.chiMiddleware.RateLimitHealth()).Get("/health", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())

		// ========================
		// Shell API
		// ========================
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(middleware.SessionKey)
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/options", router.handler.Options)
			r.Get("/options/decision-currencies", router.handler.DecisionCurrencies)
			r.Get("/amounts/format", router.handler.FormatAmount)

			r.Route("/reports", func(r chi.Router) {
				r.With(router.chiMiddleware.RateLimitSubmit()).Post("/", router.handler.CreateReport)
				r.Get("/{id}", router.handler.GetReport)
				r.Get("/{id}/artifact", router.handler.GetArtifact)
				r.Delete("/{id}", router.handler.DeleteReport)
			})
		})
	})

	return r
}
