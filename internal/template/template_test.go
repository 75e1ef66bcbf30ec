package template_test

// Notes:
// - Black-box testing through the public API (ParseName, Names, Name methods).
// - Prompt content is not asserted beyond being non-empty; wording changes freely.

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/alnah/go-medscribe/internal/template"
)

// ---------------------------------------------------------------------------
// TestParseName
// ---------------------------------------------------------------------------

func TestParseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    template.Name
		wantErr bool
	}{
		{template.SOAP, template.SOAPName, false},
		{template.Progress, template.ProgressName, false},
		{template.Consult, template.ConsultName, false},
		{template.Discharge, template.DischargeName, false},
		{"", template.Name{}, true},
		{"SOAP", template.Name{}, true},
		{"meeting", template.Name{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := template.ParseName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, template.ErrUnknown) {
					t.Errorf("ParseName(%q) error = %v, want ErrUnknown", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseName(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseName(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Prompt() == "" {
				t.Errorf("ParseName(%q).Prompt() is empty", tt.input)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestNames
// ---------------------------------------------------------------------------

func TestNames(t *testing.T) {
	t.Parallel()

	want := []string{"soap", "progress", "consult", "discharge"}
	if got := template.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	got := template.Names()
	got[0] = "mutated"
	if template.Names()[0] != "soap" {
		t.Error("Names() returned a shared slice")
	}

	for _, n := range template.Names() {
		if _, err := template.ParseName(n); err != nil {
			t.Errorf("Names() lists %q but ParseName fails: %v", n, err)
		}
	}
}

// ---------------------------------------------------------------------------
// TestName - Zero value and text encoding
// ---------------------------------------------------------------------------

func TestName(t *testing.T) {
	t.Parallel()

	t.Run("zero value", func(t *testing.T) {
		t.Parallel()

		var n template.Name
		if !n.IsZero() || n.String() != "" {
			t.Errorf("zero Name: IsZero=%v String=%q", n.IsZero(), n.String())
		}
		defer func() {
			if recover() == nil {
				t.Error("Prompt() on zero Name did not panic")
			}
		}()
		_ = n.Prompt()
	})

	t.Run("json round trip validates", func(t *testing.T) {
		t.Parallel()

		var req struct {
			Template template.Name `json:"template"`
		}
		if err := json.Unmarshal([]byte(`{"template":"consult"}`), &req); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if req.Template != template.ConsultName {
			t.Errorf("Template = %v, want consult", req.Template)
		}

		err := json.Unmarshal([]byte(`{"template":"brainstorm"}`), &req)
		if !errors.Is(err, template.ErrUnknown) {
			t.Errorf("Unmarshal unknown template error = %v, want ErrUnknown", err)
		}
	})

	t.Run("MustParseName panics on unknown", func(t *testing.T) {
		t.Parallel()

		defer func() {
			if recover() == nil {
				t.Error("MustParseName did not panic")
			}
		}()
		template.MustParseName("nope")
	})
}
