// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAPI(newTestClient(t, server.URL))
}

func TestAPI_GetConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    Credentials
		wantErr error
	}{
		{
			name: "credentials",
			body: `{"data":{"username":"user1","password":"pw","queuename":"queue-7"}}`,
			want: Credentials{Username: "user1", Password: "pw", QueueName: "queue-7"},
		},
		{name: "missing data", body: `{"status":true}`, wantErr: ErrUnexpectedPayload},
		{name: "not json", body: `<html>`, wantErr: ErrUnexpectedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				checkStringEqual(t, "path", r.URL.Path, PathGetConnection)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := api.GetConnection(context.Background())
			if tt.wantErr != nil {
				checkTrue(t, "expected error kind", errors.Is(err, tt.wantErr))
				return
			}
			checkNoError(t, err)
			if got != tt.want {
				t.Errorf("GetConnection() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAPI_PrepareInformation(t *testing.T) {
	t.Parallel()

	for _, status := range []bool{true, false} {
		api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			checkStringEqual(t, "path", r.URL.Path, PathPrepareInformation)
			if status {
				_, _ = w.Write([]byte(`{"status":true,"message":"ok"}`))
			} else {
				_, _ = w.Write([]byte(`{"status":false}`))
			}
		})

		got, err := api.PrepareInformation(context.Background(), Credentials{Username: "u"}, Identity{Country: 170, Identifier: "7707083893"})
		checkNoError(t, err)
		checkTrue(t, "status matches", got == status)
	}
}

func TestAPI_PrepareReport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantID  string
		wantErr error
	}{
		{name: "accepted", body: `{"status":true,"data":{"file_uuid":"abc-123"}}`, wantOK: true, wantID: "abc-123"},
		{name: "rejected", body: `{"status":false}`, wantOK: false},
		{name: "accepted without id", body: `{"status":true,"data":{}}`, wantErr: ErrUnexpectedPayload},
		{name: "garbage", body: `nope`, wantErr: ErrUnexpectedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				checkStringEqual(t, "path", r.URL.Path, PathPrepareReport)
				checkStringEqual(t, "currency", r.URL.Query().Get("currency"), "ORIGINAL")
				_, _ = w.Write([]byte(tt.body))
			})

			job, ok, err := api.PrepareReport(context.Background(), Credentials{}, Identity{},
				ReportParams{RequestedLimitCurrency: "EUR", RequestedLimit: "0", Language: "English", DecisionCurrency: "ORIGINAL"})
			if tt.wantErr != nil {
				checkTrue(t, "expected error kind", errors.Is(err, tt.wantErr))
				return
			}
			checkNoError(t, err)
			checkTrue(t, "ok matches", ok == tt.wantOK)
			checkStringEqual(t, "file id", job.FileID, tt.wantID)
		})
	}
}

func TestAPI_FetchFile(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, PathGetFile)
		checkStringEqual(t, "file_uuid", r.URL.Query().Get("file_uuid"), "abc-123")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	resp, err := api.FetchFile(context.Background(), "abc-123")
	checkNoError(t, err)
	checkStringEqual(t, "body", string(resp.Body), "%PDF-1.4")
	checkStringEqual(t, "disposition", resp.Header.Get("Content-Disposition"), `attachment; filename="report.pdf"`)
}
