// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"bytes"
	"mime"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/creditline/internal/upstream"
)

// pdfMagic is the leading byte sequence of every PDF file.
var pdfMagic = []byte("%PDF-")

// Kind is the classification of a file-fetch response.
type Kind int

const (
	// KindMalformed is a body that is neither binary nor JSON.
	KindMalformed Kind = iota
	// KindBinary is a binary artifact.
	KindBinary
	// KindJSON is a JSON status or link payload.
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindJSON:
		return "json"
	default:
		return "malformed"
	}
}

// Classification is the tagged result of Classify. For KindBinary the
// artifact fields are set; for KindJSON DownloadURL and Status carry the
// signals found in the payload.
type Classification struct {
	Kind        Kind
	Artifact    Artifact
	DownloadURL string
	Status      *bool
}

// Artifact is a finished report: either file bytes or a download URL.
type Artifact struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
	URL         string `json:"url,omitempty"`
}

// IsLink reports whether the artifact is a download reference rather than bytes.
func (a Artifact) IsLink() bool {
	return a.URL != ""
}

// Size is the byte length of a file artifact.
func (a Artifact) Size() int {
	return len(a.Data)
}

// Classify inspects a file-fetch response. Binary detection runs first so
// PDF bytes are never parsed as JSON: a leading %PDF- sequence, an
// octet-stream or PDF content type, or a content-disposition filename all
// mark the body as the artifact.
func Classify(resp *upstream.Response) Classification {
	if resp == nil {
		return Classification{Kind: KindMalformed}
	}

	contentType := resp.Header.Get("Content-Type")
	filename, hasFilename := dispositionFilename(resp.Header.Get("Content-Disposition"))

	if bytes.HasPrefix(resp.Body, pdfMagic) || isBinaryMediaType(contentType) || hasFilename {
		ct := contentType
		if ct == "" || (bytes.HasPrefix(resp.Body, pdfMagic) && !strings.Contains(ct, "pdf")) {
			ct = "application/pdf"
		}
		return Classification{
			Kind: KindBinary,
			Artifact: Artifact{
				Data:        resp.Body,
				ContentType: ct,
				Filename:    filename,
			},
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return Classification{Kind: KindMalformed}
	}

	c := Classification{Kind: KindJSON}
	if link, ok := payload["Download_file"].(string); ok && strings.TrimSpace(link) != "" {
		c.DownloadURL = link
	}
	if status, ok := payload["status"].(bool); ok {
		c.Status = &status
	}
	return c
}

func isBinaryMediaType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "application/octet-stream" || mediaType == "application/pdf"
}

// dispositionFilename extracts the filename parameter of a
// Content-Disposition header. Headers that fail to parse still count when
// they mention filename=.
func dispositionFilename(disposition string) (string, bool) {
	if disposition == "" {
		return "", false
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err == nil {
		if name := params["filename"]; name != "" {
			return name, true
		}
		return "", false
	}
	return "", strings.Contains(disposition, "filename=")
}
