// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

// Package proxy is a CORS pass-through to the credit-report API, for browser
// clients that cannot call it directly.
//
// Requests under the configured prefix are forwarded with the prefix
// stripped. Method, query and body are sent unchanged; GET requests carry no
// body. Upstream status, body and Content-Type are passed back. Any OPTIONS
// request is answered locally with 200 and an empty body.
package proxy

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/metrics"
)

// maxRequestBody bounds bodies read from clients.
const maxRequestBody = 10 << 20

// Config configures a Proxy.
type Config struct {
	BaseURL            string
	PathPrefix         string
	AllowedOrigins     []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	Timeout            time.Duration
	InsecureSkipVerify bool

	// HTTPClient overrides the client built from Timeout/InsecureSkipVerify.
	HTTPClient *http.Client
}

// Proxy forwards requests to the credit-report API.
type Proxy struct {
	base   *url.URL
	prefix string
	client *http.Client
	cfg    Config
}

// New creates a Proxy.
func New(cfg Config) (*Proxy, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("proxy: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/api/proxy"
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed upstreams
		}
		client = &http.Client{Timeout: timeout, Transport: transport}
	}

	return &Proxy{
		base:   base,
		prefix: strings.TrimSuffix(cfg.PathPrefix, "/"),
		client: client,
		cfg:    cfg,
	}, nil
}

// Prefix is the path the proxy is mounted at.
func (p *Proxy) Prefix() string {
	return p.prefix
}

// Handler returns the proxy wrapped in CORS and per-IP rate limiting.
func (p *Proxy) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     p.cfg.AllowedOrigins,
		AllowedMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type", "Authorization", "Accept"},
		OptionsPassthrough: true,
		MaxAge:             86400,
	}))
	if p.cfg.RateLimitRequests > 0 && p.cfg.RateLimitWindow > 0 {
		r.Use(httprate.LimitByIP(p.cfg.RateLimitRequests, p.cfg.RateLimitWindow))
	}

	r.Handle("/*", p)
	return r
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		metrics.RecordHTTPRequest("proxy", r.Method, http.StatusOK, time.Since(start))
		return
	}

	status, err := p.forward(w, r)
	if err != nil {
		metrics.ProxyErrorsTotal.Inc()
		logging.Ctx(r.Context()).Error().Err(err).Str("method", r.Method).
			Str("path", r.URL.Path).Msg("Proxy error")
		writeProxyError(w)
		status = http.StatusInternalServerError
	}
	metrics.RecordHTTPRequest("proxy", r.Method, status, time.Since(start))
}

func (p *Proxy) forward(w http.ResponseWriter, r *http.Request) (int, error) {
	target := p.targetURL(r.URL)

	var body io.Reader
	if r.Method != http.MethodGet && r.Body != nil {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			return 0, fmt.Errorf("read request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		return 0, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read upstream response: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Client went away during proxy response")
	}
	return resp.StatusCode, nil
}

// targetURL maps a request URL under the prefix onto the upstream base URL.
func (p *Proxy) targetURL(in *url.URL) string {
	path := strings.TrimPrefix(in.Path, p.prefix)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	out := *p.base
	out.Path = strings.TrimSuffix(p.base.Path, "/") + path
	out.RawPath = ""
	out.RawQuery = in.RawQuery
	return out.String()
}

func writeProxyError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": "Proxy error"}); err != nil {
		logging.Error().Err(err).Msg("Failed to encode proxy error")
	}
}
