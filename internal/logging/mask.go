// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package logging

import "strings"

// maskVisibleChars is how many trailing characters MaskSecret leaves readable.
const maskVisibleChars = 4

// MaskSecret hides all but the last four characters of a credential.
// Secrets of eight characters or fewer are hidden entirely.
//
//	MaskSecret("39b5e1c0ffee1234") // "****1234"
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 2*maskVisibleChars {
		return "****"
	}
	return "****" + secret[len(secret)-maskVisibleChars:]
}

// RedactSecret replaces every occurrence of secret in s with its masked form.
// Used on request and response bodies before they are logged or exposed.
func RedactSecret(s, secret string) string {
	if secret == "" || s == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, MaskSecret(secret))
}
