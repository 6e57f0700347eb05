// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// Endpoint paths of the credit-report API.
const (
	PathGetConnection      = "/get_amqp_connection"
	PathPrepareInformation = "/prepare_information"
	PathPrepareReport      = "/prepare_report"
	PathGetFile            = "/get_file"
)

// Credentials are the broker connection details returned by step 1.
type Credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	QueueName string `json:"queuename"`
}

// Identity is the company identification block of steps 2 and 3.
type Identity struct {
	Country    int    `json:"country"`
	Identifier string `json:"identifier"`
	WithGroup  bool   `json:"with_group"`
}

// ReportParams are the query parameters of step 3.
type ReportParams struct {
	RequestedLimitCurrency string
	RequestedLimit         string
	Language               string
	DecisionCurrency       string
}

// Values encodes the params as the step 3 query string.
func (p ReportParams) Values() url.Values {
	v := url.Values{}
	v.Set("currency_requested_limit", p.RequestedLimitCurrency)
	v.Set("requested_limit", p.RequestedLimit)
	v.Set("language", p.Language)
	v.Set("currency", p.DecisionCurrency)
	return v
}

// InformationPayload is the body of steps 2 and 3.
type InformationPayload struct {
	AMQPConnect Credentials `json:"amqp_connect"`
	Request     Identity    `json:"request"`
	Token       TokenValue  `json:"token"`
}

// SetToken implements TokenBearer.
func (p *InformationPayload) SetToken(t TokenValue) { p.Token = t }

// ReportJob is the accepted result of step 3.
type ReportJob struct {
	FileID string
}

type connectionResponse struct {
	Data *Credentials `json:"data"`
}

type statusResponse struct {
	Status bool `json:"status"`
	Data   *struct {
		FileUUID string `json:"file_uuid"`
	} `json:"data"`
}

// API exposes the four workflow steps on top of a Sender.
type API struct {
	sender Sender
}

// NewAPI wraps sender.
func NewAPI(sender Sender) *API {
	return &API{sender: sender}
}

// GetConnection obtains fresh broker credentials (step 1).
func (a *API) GetConnection(ctx context.Context) (Credentials, error) {
	resp, err := a.sender.Send(ctx, Request{Method: http.MethodPost, Path: PathGetConnection, Token: TokenAsBody})
	if err != nil {
		return Credentials{}, err
	}

	var out connectionResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return Credentials{}, fmt.Errorf("%w: decode connection: %v", ErrUnexpectedPayload, err)
	}
	if out.Data == nil {
		return Credentials{}, fmt.Errorf("%w: connection response has no credentials", ErrUnexpectedPayload)
	}
	return *out.Data, nil
}

// PrepareInformation submits company identification (step 2) and returns
// the upstream status flag.
func (a *API) PrepareInformation(ctx context.Context, creds Credentials, id Identity) (bool, error) {
	resp, err := a.sender.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   PathPrepareInformation,
		Body:   &InformationPayload{AMQPConnect: creds, Request: id},
		Token:  TokenInBody,
	})
	if err != nil {
		return false, err
	}

	var out statusResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return false, fmt.Errorf("%w: decode information status: %v", ErrUnexpectedPayload, err)
	}
	return out.Status, nil
}

// PrepareReport requests report generation (step 3). A false status is
// returned as ok=false; a true status without a file_uuid is ErrUnexpectedPayload.
func (a *API) PrepareReport(ctx context.Context, creds Credentials, id Identity, params ReportParams) (job ReportJob, ok bool, err error) {
	resp, err := a.sender.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   PathPrepareReport,
		Query:  params.Values(),
		Body:   &InformationPayload{AMQPConnect: creds, Request: id},
		Token:  TokenInBody,
	})
	if err != nil {
		return ReportJob{}, false, err
	}

	var out statusResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return ReportJob{}, false, fmt.Errorf("%w: decode report status: %v", ErrUnexpectedPayload, err)
	}
	if !out.Status {
		return ReportJob{}, false, nil
	}
	if out.Data == nil || out.Data.FileUUID == "" {
		return ReportJob{}, false, fmt.Errorf("%w: report accepted without file_uuid", ErrUnexpectedPayload)
	}
	return ReportJob{FileID: out.Data.FileUUID}, true, nil
}

// FetchFile requests the generated file (step 4) and returns the raw
// response for classification.
func (a *API) FetchFile(ctx context.Context, fileID string) (*Response, error) {
	return a.sender.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   PathGetFile,
		Query:  url.Values{"file_uuid": []string{fileID}},
		Token:  TokenAsBody,
	})
}
