// Callejero - Holy Week Events and Pedestrian Navigation
// Copyright 2026 Callejero Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/callejero-app/callejero

package validation

import (
	"strings"
	"testing"
)

func TestGetValidatorSingleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 != v2 {
		t.Error("GetValidator() returned different instances")
	}
}

type pointRequest struct {
	Lat float64 `validate:"latitude"`
	Lng float64 `validate:"longitude"`
}

func TestCoordinateValidation(t *testing.T) {
	valid := []pointRequest{
		{Lat: 37.3862, Lng: -5.9926},
		{Lat: -90, Lng: 180},
		{Lat: 90, Lng: -180},
		{Lat: 0, Lng: 0},
	}
	for _, req := range valid {
		if err := ValidateStruct(&req); err != nil {
			t.Errorf("ValidateStruct(%+v) = %v, want nil", req, err)
		}
	}

	invalid := []pointRequest{
		{Lat: 91, Lng: 0},
		{Lat: -90.5, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: 0, Lng: -180.1},
	}
	for _, req := range invalid {
		if err := ValidateStruct(&req); err == nil {
			t.Errorf("ValidateStruct(%+v) = nil, want error", req)
		}
	}
}

type targetRequest struct {
	Type string `validate:"required,oneof=event brotherhood landmark"`
	ID   string `validate:"required"`
}

func TestOneofValidation(t *testing.T) {
	for _, typ := range []string{"event", "brotherhood", "landmark"} {
		req := targetRequest{Type: typ, ID: "x"}
		if err := ValidateStruct(&req); err != nil {
			t.Errorf("ValidateStruct(type=%q) = %v, want nil", typ, err)
		}
	}

	req := targetRequest{Type: "bar", ID: "x"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("ValidateStruct(type=bar) = nil, want error")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("message = %q, want a oneof translation", err.Error())
	}
}

type severityRequest struct {
	Severity int `validate:"min=1,max=5"`
}

func TestRangeValidation(t *testing.T) {
	for _, s := range []int{1, 3, 5} {
		req := severityRequest{Severity: s}
		if err := ValidateStruct(&req); err != nil {
			t.Errorf("ValidateStruct(severity=%d) = %v, want nil", s, err)
		}
	}
	for _, s := range []int{0, 6, -2} {
		req := severityRequest{Severity: s}
		if err := ValidateStruct(&req); err == nil {
			t.Errorf("ValidateStruct(severity=%d) = nil, want error", s)
		}
	}
}

func TestNestedStructValidation(t *testing.T) {
	type routeRequest struct {
		Origin pointRequest  `validate:"required"`
		Target targetRequest `validate:"required"`
	}

	req := routeRequest{
		Origin: pointRequest{Lat: 95, Lng: 0},
		Target: targetRequest{Type: "event", ID: "madruga"},
	}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("nested invalid latitude passed validation")
	}
	if len(err.Errors()) != 1 {
		t.Errorf("got %d errors, want 1: %v", len(err.Errors()), err)
	}
	if err.Errors()[0].Field() != "Lat" {
		t.Errorf("failing field = %q, want Lat", err.Errors()[0].Field())
	}
}

func TestToAPIErrorSingleError(t *testing.T) {
	req := severityRequest{Severity: 9}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation failure")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Details["field"] != "Severity" {
		t.Errorf("Details[field] = %v, want Severity", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultipleErrors(t *testing.T) {
	req := pointRequest{Lat: 100, Lng: 200}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation failure")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("got %d errors, want 2", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("Details missing the fields list")
	}
	if !strings.Contains(apiErr.Message, ";") {
		t.Errorf("Message = %q, want combined messages", apiErr.Message)
	}
}

func TestRequiredTranslation(t *testing.T) {
	req := targetRequest{Type: "event"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(verr.Error(), "ID is required") {
		t.Errorf("message = %q, want a required translation", verr.Error())
	}
}
