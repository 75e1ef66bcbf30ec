// Package template holds the clinical note prompts used to turn a dictation
// transcript into a structured note.
package template

import (
	"fmt"
	"slices"
)

// Template name constants.
const (
	SOAP      = "soap"
	Progress  = "progress"
	Consult   = "consult"
	Discharge = "discharge"
)

// ---------------------------------------------------------------------------
// Name type - represents a validated template name
// ---------------------------------------------------------------------------

// Name represents a validated template name.
// Zero value is invalid and must not be used with Prompt().
// Use ParseName to create from user input, or the pre-parsed constants.
type Name struct {
	name string
}

// Pre-parsed template names.
var (
	SOAPName      = Name{name: SOAP}
	ProgressName  = Name{name: Progress}
	ConsultName   = Name{name: Consult}
	DischargeName = Name{name: Discharge}
)

// ParseName validates and parses a template name string.
// Returns ErrUnknown if the name is not recognized.
func ParseName(s string) (Name, error) {
	if s == "" {
		return Name{}, fmt.Errorf("template name cannot be empty: %w", ErrUnknown)
	}
	if _, ok := templates[s]; !ok {
		return Name{}, fmt.Errorf("unknown template %q: %w", s, ErrUnknown)
	}
	return Name{name: s}, nil
}

// MustParseName parses a template name, panicking if invalid.
// Use only for constants and tests.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the template name string.
func (n Name) String() string {
	return n.name
}

// IsZero returns true if no template is set.
func (n Name) IsZero() bool {
	return n.name == ""
}

// Prompt returns the system prompt for this template.
// Panics if called on zero value.
func (n Name) Prompt() string {
	if n.name == "" {
		panic("template.Name.Prompt called on zero value")
	}
	return templates[n.name]
}

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so request bodies can
// carry a template name that is validated on decode.
func (n *Name) UnmarshalText(b []byte) error {
	parsed, err := ParseName(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// order is the canonical order for Names(), used in help and error messages.
var order = []string{SOAP, Progress, Consult, Discharge}

// templates maps template names to their prompts.
// Prompts are versioned with the binary; update requires rebuild.
var templates = map[string]string{
	SOAP:      soapPrompt,
	Progress:  progressPrompt,
	Consult:   consultPrompt,
	Discharge: dischargePrompt,
}

// Names returns the available template names in canonical order.
func Names() []string {
	return slices.Clone(order)
}

const commonRules = `
Rules:
- Use only information stated in the transcript; never invent findings, doses or diagnoses
- Write "not documented" for any required section the transcript does not cover
- Correct obvious transcription errors in drug names and medical terms
- Remove filler words and false starts
- Keep units and dosages exactly as dictated
- Output markdown only, no preamble`

const soapPrompt = `You turn a clinician's dictation transcript into a SOAP note in markdown.

Sections, each as an H2:
- Subjective: chief complaint, history of present illness, relevant history, medications, allergies
- Objective: vital signs, examination findings, results mentioned
- Assessment: diagnoses or differential, with reasoning as dictated
- Plan: investigations, treatment, follow-up, patient education
` + commonRules

const progressPrompt = `You turn a clinician's dictation transcript into a progress note in markdown.

Sections, each as an H2:
- Interval History: changes since the last visit
- Current Status: symptoms, examination, results
- Assessment: problem list with status of each problem
- Plan: changes to treatment, next review date
` + commonRules

const consultPrompt = `You turn a clinician's dictation transcript into a consultation letter in markdown.

Sections, each as an H2:
- Reason for Referral
- History
- Examination
- Impression
- Recommendations: numbered list addressed to the referring clinician
` + commonRules

const dischargePrompt = `You turn a clinician's dictation transcript into a discharge summary in markdown.

Sections, each as an H2:
- Admission Details: dates and reason for admission
- Hospital Course: key events, procedures and complications
- Discharge Diagnoses
- Discharge Medications: table with drug, dose, route, frequency and changes
- Follow-up: appointments, pending results, instructions to the patient
` + commonRules
