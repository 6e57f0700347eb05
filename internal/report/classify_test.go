// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"net/http"
	"testing"

	"github.com/tomtom215/creditline/internal/upstream"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		contentType  string
		disposition  string
		body         string
		wantKind     Kind
		wantURL      string
		wantStatus   *bool
		wantFilename string
		wantCT       string
	}{
		{
			name:        "pdf magic beats json content type",
			contentType: "application/json",
			body:        "%PDF-1.4 ...",
			wantKind:    KindBinary,
			wantCT:      "application/pdf",
		},
		{
			name:        "octet stream",
			contentType: "application/octet-stream",
			body:        "\x00\x01\x02",
			wantKind:    KindBinary,
			wantCT:      "application/octet-stream",
		},
		{
			name:        "pdf content type with params",
			contentType: "application/pdf; qs=0.9",
			body:        "not-really-a-pdf",
			wantKind:    KindBinary,
			wantCT:      "application/pdf; qs=0.9",
		},
		{
			name:         "content disposition filename",
			contentType:  "text/plain",
			disposition:  `attachment; filename="credit-report.pdf"`,
			body:         "bytes",
			wantKind:     KindBinary,
			wantFilename: "credit-report.pdf",
			wantCT:       "text/plain",
		},
		{
			name:        "unparseable disposition mentioning filename",
			disposition: `attachment; filename=a b.pdf; x`,
			body:        "bytes",
			wantKind:    KindBinary,
			wantCT:      "application/pdf",
		},
		{
			name:        "download link",
			contentType: "application/json",
			body:        `{"Download_file":"https://files.example.test/r.pdf"}`,
			wantKind:    KindJSON,
			wantURL:     "https://files.example.test/r.pdf",
		},
		{
			name:       "status false",
			body:       `{"status":false}`,
			wantKind:   KindJSON,
			wantStatus: boolPtr(false),
		},
		{
			name:     "empty download link is no signal",
			body:     `{"Download_file":""}`,
			wantKind: KindJSON,
		},
		{
			name:     "json array without signals",
			body:     `[1,2,3]`,
			wantKind: KindMalformed,
		},
		{
			name:     "html error page",
			body:     `<html>busy</html>`,
			wantKind: KindMalformed,
		},
		{
			name:     "empty body",
			body:     ``,
			wantKind: KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header := http.Header{}
			if tt.contentType != "" {
				header.Set("Content-Type", tt.contentType)
			}
			if tt.disposition != "" {
				header.Set("Content-Disposition", tt.disposition)
			}

			c := Classify(&upstream.Response{Status: 200, Header: header, Body: []byte(tt.body)})

			checkStringEqual(t, "kind", c.Kind.String(), tt.wantKind.String())
			checkStringEqual(t, "download url", c.DownloadURL, tt.wantURL)
			if tt.wantKind == KindBinary {
				checkStringEqual(t, "body", string(c.Artifact.Data), tt.body)
				checkStringEqual(t, "filename", c.Artifact.Filename, tt.wantFilename)
				checkStringEqual(t, "content type", c.Artifact.ContentType, tt.wantCT)
			}
			switch {
			case tt.wantStatus == nil && c.Status != nil:
				t.Errorf("status: expected none, got %v", *c.Status)
			case tt.wantStatus != nil && (c.Status == nil || *c.Status != *tt.wantStatus):
				t.Errorf("status: expected %v, got %v", *tt.wantStatus, c.Status)
			}
		})
	}
}

func TestClassify_NilResponse(t *testing.T) {
	t.Parallel()
	checkTrue(t, "malformed", Classify(nil).Kind == KindMalformed)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	ready := Evaluate(Classification{Kind: KindBinary, Artifact: Artifact{Data: []byte("x")}})
	checkStringEqual(t, "binary", ready.Status.String(), "ready")

	link := Evaluate(Classification{Kind: KindJSON, DownloadURL: "https://x"})
	checkStringEqual(t, "link", link.Status.String(), "ready")
	checkTrue(t, "link artifact", link.Artifact.IsLink())

	notReady := Evaluate(Classification{Kind: KindJSON, Status: boolPtr(false)})
	checkStringEqual(t, "status false", notReady.Status.String(), "not_ready")

	malformed := Evaluate(Classification{Kind: KindMalformed})
	checkStringEqual(t, "malformed", malformed.Status.String(), "not_ready")
	checkTrue(t, "malformed reason", malformed.Reason == ErrMalformedResponse)
}

func boolPtr(b bool) *bool { return &b }
