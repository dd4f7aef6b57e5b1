// Gateward - Permission-Gated Request Handling and Cache Revalidation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gateward

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Name  string `validate:"required,min=1,max=20"`
	Limit int    `validate:"min=1,max=1000"`
	Mode  string `validate:"omitempty,oneof=json console"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sampleRequest
		wantErr   bool
		wantField string
	}{
		{
			name:    "valid struct",
			input:   sampleRequest{Name: "reports", Limit: 10},
			wantErr: false,
		},
		{
			name:    "valid with optional mode",
			input:   sampleRequest{Name: "reports", Limit: 10, Mode: "json"},
			wantErr: false,
		},
		{
			name:      "missing required name",
			input:     sampleRequest{Limit: 10},
			wantErr:   true,
			wantField: "Name",
		},
		{
			name:      "limit below minimum",
			input:     sampleRequest{Name: "reports", Limit: 0},
			wantErr:   true,
			wantField: "Limit",
		},
		{
			name:      "limit above maximum",
			input:     sampleRequest{Name: "reports", Limit: 10000},
			wantErr:   true,
			wantField: "Limit",
		},
		{
			name:      "invalid mode",
			input:     sampleRequest{Name: "reports", Limit: 10, Mode: "xml"},
			wantErr:   true,
			wantField: "Mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				found := false
				for _, fe := range err.Fields() {
					if fe.Field == tt.wantField {
						found = true
					}
				}
				if !found {
					t.Errorf("expected failure on field %q, got %v", tt.wantField, err.Fields())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestStructErrorMessageJoinsFields(t *testing.T) {
	err := ValidateStruct(&sampleRequest{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Name is required") {
		t.Errorf("expected required message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), ";") && len(err.Fields()) > 1 {
		t.Errorf("expected joined messages, got %q", err.Error())
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance across calls")
	}
}
