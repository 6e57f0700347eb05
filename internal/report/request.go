// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package report

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/creditline/internal/upstream"
	"github.com/tomtom215/creditline/internal/validation"
)

// DecisionOriginal is the decision-currency sentinel meaning "same as the
// requested limit currency". It is transmitted literally.
const DecisionOriginal = "ORIGINAL"

// Countries is the closed set of selectable countries.
var Countries = []string{
	"United States",
	"United Kingdom",
	"Germany",
	"France",
	"China",
	"Japan",
	"Russia",
	"Kazakhstan",
	"Uzbekistan",
	"Mongolia",
	"United Arab Emirates",
	"Saudi Arabia",
	"India",
	"South Korea",
	"Singapore",
}

// Currencies is the closed set of limit currencies.
var Currencies = []string{
	"USD", "EUR", "GBP", "JPY", "CNY", "RUB", "KZT",
	"UZS", "MNT", "AED", "SAR", "INR", "KRW", "SGD",
}

// Languages is the closed set of report languages.
var Languages = []string{
	"English",
	"Russian",
	"Mongolian",
	"Uzbek",
	"Kazakh",
	"German",
	"French",
	"Chinese (Mandarin)",
	"Arabic",
	"Japanese",
}

// countryCodes maps country names to upstream integer codes. Only the codes
// confirmed against the upstream service are listed.
var countryCodes = map[string]int{
	"Russia": 170,
}

// Request is a report request as entered by the user.
type Request struct {
	Country                string `json:"country" validate:"required,known_country"`
	CompanyIdentifier      string `json:"company_identifier" validate:"required,digits"`
	IncludeGroup           bool   `json:"include_group"`
	RequestedLimitCurrency string `json:"requested_limit_currency" validate:"required,known_currency"`
	RequestedLimitAmount   string `json:"requested_limit_amount" validate:"amount"`
	DecisionCurrency       string `json:"decision_currency" validate:"required,known_decision,differs_unless=RequestedLimitCurrency ORIGINAL"`
	Language               string `json:"language" validate:"required,known_language"`
}

// DefaultRequest returns the form defaults.
func DefaultRequest() Request {
	return Request{
		Country:                "Russia",
		RequestedLimitCurrency: "EUR",
		DecisionCurrency:       DecisionOriginal,
		Language:               "English",
	}
}

var registerEnumsOnce sync.Once

func registerEnums() {
	registerEnumsOnce.Do(func() {
		enums := map[string][]string{
			"known_country":  Countries,
			"known_currency": Currencies,
			"known_decision": append([]string{DecisionOriginal}, Currencies...),
			"known_language": Languages,
		}
		for tag, values := range enums {
			if err := validation.RegisterEnum(tag, values); err != nil {
				panic(err)
			}
		}
	})
}

// Normalize trims surrounding whitespace from every text field.
func (r Request) Normalize() Request {
	r.Country = strings.TrimSpace(r.Country)
	r.CompanyIdentifier = strings.TrimSpace(r.CompanyIdentifier)
	r.RequestedLimitCurrency = strings.TrimSpace(r.RequestedLimitCurrency)
	r.RequestedLimitAmount = strings.TrimSpace(r.RequestedLimitAmount)
	r.DecisionCurrency = strings.TrimSpace(r.DecisionCurrency)
	r.Language = strings.TrimSpace(r.Language)
	return r
}

// Validate checks field rules and that the country has an upstream code.
// Field failures are returned as *validation.RequestValidationError.
func (r Request) Validate() error {
	registerEnums()
	if verr := validation.ValidateStruct(&r); verr != nil {
		return verr
	}
	if _, err := CountryCode(r.Country); err != nil {
		return err
	}
	return nil
}

// Identity builds the identification block of steps 2 and 3.
func (r Request) Identity() (upstream.Identity, error) {
	code, err := CountryCode(r.Country)
	if err != nil {
		return upstream.Identity{}, err
	}
	return upstream.Identity{
		Country:    code,
		Identifier: r.CompanyIdentifier,
		WithGroup:  r.IncludeGroup,
	}, nil
}

// Params builds the step 3 query parameters. The amount is sent with
// separators stripped and the decision currency is sent as entered.
func (r Request) Params() upstream.ReportParams {
	return upstream.ReportParams{
		RequestedLimitCurrency: r.RequestedLimitCurrency,
		RequestedLimit:         NormalizeAmount(r.RequestedLimitAmount),
		Language:               r.Language,
		DecisionCurrency:       r.DecisionCurrency,
	}
}

// CountryCode returns the upstream code for a country name.
func CountryCode(country string) (int, error) {
	code, ok := countryCodes[country]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCountryCode, country)
	}
	return code, nil
}

// DecisionCurrencyOptions lists the decision currencies selectable for a
// requested currency: the sentinel first, then every other currency.
func DecisionCurrencyOptions(requested string) []string {
	out := make([]string, 0, len(Currencies)+1)
	out = append(out, DecisionOriginal)
	for _, c := range Currencies {
		if c != requested {
			out = append(out, c)
		}
	}
	return out
}
