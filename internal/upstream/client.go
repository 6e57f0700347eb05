// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

/*
client.go - Credit-report API transport

Client is the only component that holds the session token. Callers describe
where the token goes (TokenPlacement) and the client attaches it; the token
is always carried in the JSON request body, never in a header.

Send performs exactly one HTTP exchange. It does not retry: retry and
polling policy belong to the workflow and the poller.
*/

package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/creditline/internal/logging"
	"github.com/tomtom215/creditline/internal/metrics"
)

const (
	// acceptHeader permits JSON status payloads and binary report files.
	acceptHeader = "application/json, application/pdf, application/octet-stream, */*"

	// maxErrorBodySize bounds the body kept on a TransportError.
	maxErrorBodySize = 64 * 1024

	// defaultMaxBodyBytes bounds any successful response body.
	defaultMaxBodyBytes = 50 << 20
)

// TokenPlacement says how the session token is attached to a request body.
type TokenPlacement int

const (
	// TokenNone sends Body unchanged.
	TokenNone TokenPlacement = iota

	// TokenAsBody sends {"value": token} as the whole body. Body must be nil.
	TokenAsBody

	// TokenInBody sets the "token" field of Body, which must implement TokenBearer.
	TokenInBody
)

// TokenValue is the wire shape of the session token.
type TokenValue struct {
	Value string `json:"value"`
}

// TokenBearer is implemented by payloads with a nested token field.
type TokenBearer interface {
	SetToken(TokenValue)
}

// Request describes one call to the API.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Token  TokenPlacement
}

// Response is the raw result of a 2xx exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Sender is the transport capability the rest of the module depends on.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	InsecureSkipVerify bool

	// RateLimit is the sustained outbound request rate; 0 disables pacing.
	RateLimit rate.Limit
	Burst     int

	// MaxBodyBytes bounds successful response bodies (default 50 MiB).
	MaxBodyBytes int64

	// HTTPClient overrides the client built from Timeout/InsecureSkipVerify.
	HTTPClient *http.Client
}

// Client sends requests to the credit-report API.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxBodyBytes int64
}

var _ Sender = (*Client)(nil)

// NewClient creates a Client. BaseURL and Token are required.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("upstream: base URL is required")
	}
	if opts.Token == "" {
		return nil, errors.New("upstream: session token is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			//nolint:gosec // opt-in for upstreams served on a bare IP with a self-signed certificate
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &Client{
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		token:        opts.Token,
		httpClient:   httpClient,
		limiter:      limiter,
		maxBodyBytes: maxBody,
	}, nil
}

// Send performs a single exchange. Non-2xx statuses, network failures and
// oversized bodies are returned as *TransportError.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	endpoint := endpointName(req.Path)
	fullURL := c.buildURL(req.Path, req.Query)

	payload, err := c.encodeBody(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, URL: fullURL, Cause: err}
		}
		metrics.UpstreamRateLimitWait.Observe(time.Since(waitStart).Seconds())
	}

	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", acceptHeader)

	ex := Exchange{
		Endpoint:      endpoint,
		Method:        method,
		URL:           fullURL,
		RequestHeader: httpReq.Header.Clone(),
		RequestBody:   logging.RedactSecret(string(payload), c.token),
		StartedAt:     time.Now(),
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		terr := &TransportError{Method: method, URL: fullURL, Cause: err}
		c.finish(ctx, &ex, nil, nil, terr)
		return nil, terr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readBodyForError(resp.Body)
		terr := &TransportError{Method: method, URL: fullURL, Status: resp.StatusCode, Body: body}
		c.finish(ctx, &ex, resp, []byte(body), terr)
		return nil, terr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		terr := &TransportError{Method: method, URL: fullURL, Status: resp.StatusCode, Cause: fmt.Errorf("read body: %w", err)}
		c.finish(ctx, &ex, resp, nil, terr)
		return nil, terr
	}
	if int64(len(body)) > c.maxBodyBytes {
		terr := &TransportError{Method: method, URL: fullURL, Status: resp.StatusCode, Cause: ErrResponseTooLarge}
		c.finish(ctx, &ex, resp, nil, terr)
		return nil, terr
	}

	c.finish(ctx, &ex, resp, body, nil)
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

// encodeBody attaches the token according to req.Token and marshals the payload.
func (c *Client) encodeBody(req Request) ([]byte, error) {
	switch req.Token {
	case TokenAsBody:
		if req.Body != nil {
			return nil, errors.New("token-as-body request must not carry its own body")
		}
		return json.Marshal(TokenValue{Value: c.token})
	case TokenInBody:
		bearer, ok := req.Body.(TokenBearer)
		if !ok {
			return nil, fmt.Errorf("body %T cannot carry a token", req.Body)
		}
		bearer.SetToken(TokenValue{Value: c.token})
		return json.Marshal(req.Body)
	default:
		if req.Body == nil {
			return nil, nil
		}
		return json.Marshal(req.Body)
	}
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// finish records metrics, debug logs and notifies the context observer.
func (c *Client) finish(ctx context.Context, ex *Exchange, resp *http.Response, body []byte, err error) {
	ex.Duration = time.Since(ex.StartedAt)
	if resp != nil {
		ex.Status = resp.StatusCode
		ex.ResponseHeader = resp.Header.Clone()
	}
	ex.ResponseBody = logging.RedactSecret(summarizeBody(ex.ResponseHeader, body), c.token)
	if err != nil {
		ex.Err = logging.RedactSecret(err.Error(), c.token)
	}

	metrics.RecordUpstreamRequest(ex.Endpoint, ex.Status, ex.Duration)

	var event *zerolog.Event
	if err != nil {
		event = logging.Ctx(ctx).Warn().Str("error", ex.Err)
	} else {
		event = logging.Ctx(ctx).Debug()
	}
	event.
		Str("endpoint", ex.Endpoint).
		Str("method", ex.Method).
		Int("status", ex.Status).
		Dur("duration", ex.Duration).
		Msg("Upstream exchange")

	notifyObserver(ctx, *ex)
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return fmt.Sprintf("[failed to read body: %v]", err)
	}
	return strings.TrimSpace(string(body))
}

func endpointName(path string) string {
	name := strings.Trim(path, "/")
	if name == "" {
		return "root"
	}
	return name
}
