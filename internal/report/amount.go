// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"strings"

	"github.com/tomtom215/creditline/internal/validation"
)

// FormatAmount renders an amount for display: every character other than
// digits and '.' is dropped and the integer part is grouped with commas.
// Only the first fractional group is kept.
//
//	FormatAmount("1234567.5") // "1,234,567.5"
func FormatAmount(value string) string {
	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, value)

	parts := strings.Split(digits, ".")
	integer := parts[0]
	fraction := ""
	if len(parts) > 1 && parts[1] != "" {
		fraction = "." + parts[1]
	}

	return groupThousands(integer) + fraction
}

func groupThousands(integer string) string {
	if len(integer) <= 3 {
		return integer
	}

	var b strings.Builder
	b.Grow(len(integer) + len(integer)/3)

	lead := len(integer) % 3
	if lead > 0 {
		b.WriteString(integer[:lead])
	}
	for i := lead; i < len(integer); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(integer[i : i+3])
	}
	return b.String()
}

// NormalizeAmount strips grouping separators for transmission. An empty
// amount is sent as "0".
func NormalizeAmount(value string) string {
	s := validation.StripSeparators(value)
	if s == "" {
		return "0"
	}
	return s
}
