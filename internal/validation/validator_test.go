// Creditline - Credit Report Retrieval Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/creditline

package validation

import (
	"strings"
	"testing"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}

	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

// ===================================================================================================
// ValidateStruct Tests
// ===================================================================================================

type testForm struct {
	Identifier string `json:"identifier" validate:"required,digits"`
	Amount     string `json:"amount" validate:"amount"`
	Requested  string `json:"requested" validate:"required,testcurrency"`
	Decision   string `json:"decision" validate:"required,differs_unless=Requested SAME"`
}

func init() {
	if err := RegisterEnum("testcurrency", []string{"EUR", "USD"}); err != nil {
		panic(err)
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input testForm
	}{
		{name: "plain", input: testForm{Identifier: "7707083893", Amount: "1000", Requested: "EUR", Decision: "USD"}},
		{name: "grouped amount", input: testForm{Identifier: "1", Amount: "1,234,567.5", Requested: "EUR", Decision: "USD"}},
		{name: "empty amount", input: testForm{Identifier: "1", Amount: "", Requested: "EUR", Decision: "USD"}},
		{name: "sentinel equals nothing", input: testForm{Identifier: "1", Requested: "EUR", Decision: "SAME"}},
		{name: "trailing dot", input: testForm{Identifier: "1", Amount: "12.", Requested: "USD", Decision: "EUR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() returned unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	valid := testForm{Identifier: "1", Amount: "1", Requested: "EUR", Decision: "USD"}

	tests := []struct {
		name      string
		mutate    func(f *testForm)
		wantField string
		wantTag   string
	}{
		{name: "missing identifier", mutate: func(f *testForm) { f.Identifier = "" }, wantField: "identifier", wantTag: "required"},
		{name: "letters in identifier", mutate: func(f *testForm) { f.Identifier = "12a4" }, wantField: "identifier", wantTag: "digits"},
		{name: "negative amount", mutate: func(f *testForm) { f.Amount = "-5" }, wantField: "amount", wantTag: "amount"},
		{name: "two decimal points", mutate: func(f *testForm) { f.Amount = "1.2.3" }, wantField: "amount", wantTag: "amount"},
		{name: "letters in amount", mutate: func(f *testForm) { f.Amount = "12k" }, wantField: "amount", wantTag: "amount"},
		{name: "unknown currency", mutate: func(f *testForm) { f.Requested = "XYZ"; f.Decision = "SAME" }, wantField: "requested", wantTag: "testcurrency"},
		{name: "decision equals requested", mutate: func(f *testForm) { f.Decision = "EUR" }, wantField: "decision", wantTag: "differs_unless"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)

			err := ValidateStruct(&input)
			if err == nil {
				t.Fatal("ValidateStruct() should have returned an error")
			}

			found := false
			for _, e := range err.Errors() {
				if e.Field() == tt.wantField && e.Tag() == tt.wantTag {
					found = true
					break
				}
			}

			if !found {
				t.Errorf("Expected error on field %s with tag %s, got: %v", tt.wantField, tt.wantTag, err.Errors())
			}
		})
	}
}

// ===================================================================================================
// Message Translation Tests
// ===================================================================================================

func TestValidateStruct_Messages(t *testing.T) {
	tests := []struct {
		name  string
		input testForm
		want  string
	}{
		{name: "digits", input: testForm{Identifier: "x", Requested: "EUR", Decision: "USD"}, want: "identifier must contain only digits"},
		{name: "amount", input: testForm{Identifier: "1", Amount: "abc", Requested: "EUR", Decision: "USD"}, want: "amount must be a non-negative decimal number"},
		{name: "enum", input: testForm{Identifier: "1", Requested: "JPY", Decision: "SAME"}, want: `requested has unsupported value "JPY"`},
		{name: "differs", input: testForm{Identifier: "1", Requested: "EUR", Decision: "EUR"}, want: "decision must differ from Requested unless it is SAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

// ===================================================================================================
// ToAPIError Tests
// ===================================================================================================

func TestToAPIError_SingleError(t *testing.T) {
	input := testForm{Identifier: "", Requested: "EUR", Decision: "USD"}

	err := ValidateStruct(&input)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Message != "identifier is required" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "identifier" {
		t.Errorf("Details[field] = %v, want identifier", apiErr.Details["field"])
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	input := testForm{Identifier: "abc", Amount: "x", Requested: "EUR", Decision: "EUR"}

	err := ValidateStruct(&input)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if len(err.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(err.Errors()), err)
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Fatalf("Details[fields] = %#v", apiErr.Details["fields"])
	}
	if !strings.Contains(apiErr.Message, "; ") {
		t.Errorf("Message should join errors, got %q", apiErr.Message)
	}
}

func TestToAPIError_Empty(t *testing.T) {
	ve := &RequestValidationError{}
	if ve.Error() != "validation failed" {
		t.Errorf("Error() = %q", ve.Error())
	}
	if ve.ToAPIError().Message != "Validation failed" {
		t.Errorf("Message = %q", ve.ToAPIError().Message)
	}
}

// ===================================================================================================
// Helper Tests
// ===================================================================================================

func TestStripSeparators(t *testing.T) {
	tests := map[string]string{
		"1,234,567.5": "1234567.5",
		" 1 000 ":     "1000",
		"1_000":       "1000",
		"":            "",
		"42":          "42",
	}
	for in, want := range tests {
		if got := StripSeparators(in); got != want {
			t.Errorf("StripSeparators(%q) = %q, want %q", in, got, want)
		}
	}
}
