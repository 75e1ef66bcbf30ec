// Package apierr provides the typed error taxonomy for AI backend calls.
//
// Every failure coming back from an AI provider is classified into exactly one
// Code, and every Code belongs to exactly one Category. Provider SDK errors are
// adapted into a RawFailure at the boundary (see FailureFrom) and turned into a
// *ServiceError by a Classifier. Callers branch on the code with errors.Is:
//
//	if errors.Is(err, apierr.ErrRateLimit) { ... }
//
// or inspect the full diagnostic with errors.As.
package apierr

import (
	"errors"
	"fmt"
)

// Category groups error codes by where the failure originated.
type Category string

// Error categories.
const (
	CategoryNetwork    Category = "network"
	CategoryAPI        Category = "api"
	CategoryValidation Category = "validation"
	CategoryProcessing Category = "processing"
	CategorySystem     Category = "system"
)

// Code identifies a failure in the taxonomy. The set is closed.
type Code string

// Error codes.
const (
	// Network.
	CodeNetworkTimeout Code = "NETWORK_TIMEOUT"
	CodeNetworkOffline Code = "NETWORK_OFFLINE"

	// API.
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeModelAccessDenied    Code = "MODEL_ACCESS_DENIED"
	CodeModelNotFound        Code = "MODEL_NOT_FOUND"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"

	// Validation. Built by callers, never by the classifier.
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeTranscriptTooShort Code = "TRANSCRIPT_TOO_SHORT"
	CodeTranscriptTooLong  Code = "TRANSCRIPT_TOO_LONG"

	// Processing.
	CodeParsingFailed     Code = "PARSING_FAILED"
	CodeEmptyResponse     Code = "EMPTY_RESPONSE"
	CodeResponseTruncated Code = "RESPONSE_TRUNCATED"

	// System.
	CodeUnknown     Code = "UNKNOWN_ERROR"
	CodeConfigError Code = "CONFIG_ERROR"
)

// codeCategories is the single source of truth for code -> category.
var codeCategories = map[Code]Category{
	CodeNetworkTimeout:       CategoryNetwork,
	CodeNetworkOffline:       CategoryNetwork,
	CodeRateLimitExceeded:    CategoryAPI,
	CodeAuthenticationFailed: CategoryAPI,
	CodeModelAccessDenied:    CategoryAPI,
	CodeModelNotFound:        CategoryAPI,
	CodeServiceUnavailable:   CategoryAPI,
	CodeInvalidInput:         CategoryValidation,
	CodeTranscriptTooShort:   CategoryValidation,
	CodeTranscriptTooLong:    CategoryValidation,
	CodeParsingFailed:        CategoryProcessing,
	CodeEmptyResponse:        CategoryProcessing,
	CodeResponseTruncated:    CategoryProcessing,
	CodeUnknown:              CategorySystem,
	CodeConfigError:          CategorySystem,
}

// Codes returns every code in the taxonomy, grouped by category.
func Codes() []Code {
	return []Code{
		CodeNetworkTimeout, CodeNetworkOffline,
		CodeRateLimitExceeded, CodeAuthenticationFailed, CodeModelAccessDenied,
		CodeModelNotFound, CodeServiceUnavailable,
		CodeInvalidInput, CodeTranscriptTooShort, CodeTranscriptTooLong,
		CodeParsingFailed, CodeEmptyResponse, CodeResponseTruncated,
		CodeUnknown, CodeConfigError,
	}
}

// ParseCode validates a code string such as "RATE_LIMIT_EXCEEDED".
func ParseCode(s string) (Code, error) {
	c := Code(s)
	if _, ok := codeCategories[c]; !ok {
		return "", fmt.Errorf("unknown error code %q: %w", s, ErrUnknownCode)
	}
	return c, nil
}

// Category returns the category the code belongs to.
// Codes outside the taxonomy report CategorySystem.
func (c Code) Category() Category {
	if cat, ok := codeCategories[c]; ok {
		return cat
	}
	return CategorySystem
}

// Retryable reports whether failures with this code are worth another attempt.
// Access and credential problems, validation failures and configuration errors
// will not heal on their own; everything else, including UNKNOWN_ERROR, is retried.
func (c Code) Retryable() bool {
	switch c {
	case CodeModelAccessDenied, CodeAuthenticationFailed, CodeConfigError:
		return false
	}
	return c.Category() != CategoryValidation
}

// ErrUnknownCode indicates a string that does not name a Code.
var ErrUnknownCode = errors.New("unknown error code")

// Sentinels for errors.Is matching against a code. A *ServiceError matches
// the sentinel with the same code regardless of its messages.
var (
	ErrNetworkTimeout     = &ServiceError{Code: CodeNetworkTimeout}
	ErrNetworkOffline     = &ServiceError{Code: CodeNetworkOffline}
	ErrRateLimit          = &ServiceError{Code: CodeRateLimitExceeded}
	ErrAuthFailed         = &ServiceError{Code: CodeAuthenticationFailed}
	ErrModelAccessDenied  = &ServiceError{Code: CodeModelAccessDenied}
	ErrModelNotFound      = &ServiceError{Code: CodeModelNotFound}
	ErrServiceUnavailable = &ServiceError{Code: CodeServiceUnavailable}
	ErrInvalidInput       = &ServiceError{Code: CodeInvalidInput}
	ErrTranscriptTooShort = &ServiceError{Code: CodeTranscriptTooShort}
	ErrTranscriptTooLong  = &ServiceError{Code: CodeTranscriptTooLong}
	ErrParsingFailed      = &ServiceError{Code: CodeParsingFailed}
	ErrEmptyResponse      = &ServiceError{Code: CodeEmptyResponse}
	ErrResponseTruncated  = &ServiceError{Code: CodeResponseTruncated}
	ErrUnknown            = &ServiceError{Code: CodeUnknown}
	ErrConfig             = &ServiceError{Code: CodeConfigError}
)

// ServiceError is a classified AI backend failure with user-facing diagnostics.
type ServiceError struct {
	Code     Code
	Category Category

	// UserMessage is safe to show to clinicians.
	UserMessage string
	// TechnicalMessage is meant for logs and support; it may embed the raw message.
	TechnicalMessage string
	// Troubleshooting lists actionable steps, in order.
	Troubleshooting []string

	Retryable bool
	// EstimatedFixTime is empty when no estimate is meaningful.
	EstimatedFixTime string

	// Cause is the raw error this was classified from, if any.
	Cause error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.TechnicalMessage != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.TechnicalMessage)
	}
	if e.UserMessage != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.UserMessage)
	}
	return string(e.Code)
}

// consistent reports whether the derived fields agree with the code.
func (e *ServiceError) consistent() bool {
	return e.Category == e.Code.Category() && e.Retryable == e.Code.Retryable() && e.UserMessage != ""
}

// Unwrap returns the raw cause.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *ServiceError with the same code.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// As extracts the first *ServiceError in err's chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
