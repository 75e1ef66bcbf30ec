package apierr

import (
	"fmt"
	"slices"
)

// entry is the canned diagnostic content for one code.
type entry struct {
	userMessage     string
	troubleshooting []string
	fixTime         string
}

// catalog holds the user-facing content for every code.
// Messages are versioned with the binary; update requires rebuild.
var catalog = map[Code]entry{
	CodeNetworkTimeout: {
		userMessage: "The AI service took too long to respond.",
		troubleshooting: []string{
			"Check your internet connection",
			"Wait a moment and try again",
			"If the dictation is very long, try splitting it into shorter sections",
		},
		fixTime: "1-2 minutes",
	},
	CodeNetworkOffline: {
		userMessage: "Unable to reach the AI service. You appear to be offline.",
		troubleshooting: []string{
			"Check that your device is connected to the network",
			"Verify that VPN or proxy settings allow outbound connections",
			"Try again once the connection is restored",
		},
		fixTime: "a few minutes",
	},
	CodeRateLimitExceeded: {
		userMessage: "The AI service is receiving too many requests right now.",
		troubleshooting: []string{
			"Wait a minute before trying again",
			"Avoid submitting the same note several times in a row",
			"Contact support if this keeps happening during normal use",
		},
		fixTime: "1-5 minutes",
	},
	CodeAuthenticationFailed: {
		userMessage: "The AI service rejected our credentials.",
		troubleshooting: []string{
			"Verify that the API key is set and has not expired",
			"Check that the key belongs to the expected account",
			"Contact your administrator to rotate the credentials",
		},
	},
	CodeModelAccessDenied: {
		userMessage: "This account is not allowed to use the requested AI model.",
		troubleshooting: []string{
			"Ask your administrator to enable access to the model",
			"Select a different model in the configuration",
			"Contact support with the error code below",
		},
	},
	CodeModelNotFound: {
		userMessage: "The requested AI model is not available. Trying an alternate model.",
		troubleshooting: []string{
			"Wait while the system switches to a fallback model",
			"Check the model name in the configuration",
		},
		fixTime: "less than a minute",
	},
	CodeServiceUnavailable: {
		userMessage: "The AI service is temporarily unavailable.",
		troubleshooting: []string{
			"Wait a few minutes and try again",
			"Check the provider status page for ongoing incidents",
			"Save your dictation so it is not lost",
		},
		fixTime: "5-15 minutes",
	},
	CodeInvalidInput: {
		userMessage: "The request could not be processed because the input is invalid.",
		troubleshooting: []string{
			"Review the input for missing or malformed fields",
			"Try again with corrected input",
		},
	},
	CodeTranscriptTooShort: {
		userMessage: "The transcript is too short to generate a note.",
		troubleshooting: []string{
			"Record a longer dictation with the relevant clinical details",
			"Check that the microphone captured your speech",
		},
	},
	CodeTranscriptTooLong: {
		userMessage: "The transcript is too long to process in one request.",
		troubleshooting: []string{
			"Split the dictation into shorter sections",
			"Remove content that does not belong in the note",
		},
	},
	CodeParsingFailed: {
		userMessage: "The AI response could not be read.",
		troubleshooting: []string{
			"Try again; this is usually temporary",
			"Contact support if the problem persists",
		},
		fixTime: "less than a minute",
	},
	CodeEmptyResponse: {
		userMessage: "The AI service returned an empty response.",
		troubleshooting: []string{
			"Try again",
			"Check that the transcript contains clinical content",
		},
		fixTime: "less than a minute",
	},
	CodeResponseTruncated: {
		userMessage: "The AI response was cut off before it was complete.",
		troubleshooting: []string{
			"Try again",
			"Use a shorter transcript or a more concise template",
		},
		fixTime: "less than a minute",
	},
	CodeUnknown: {
		userMessage: "An unexpected error occurred while contacting the AI service.",
		troubleshooting: []string{
			"Try again",
			"Restart the application if the problem continues",
			"Contact support with the error code below",
		},
	},
	CodeConfigError: {
		userMessage: "The application is not configured correctly.",
		troubleshooting: []string{
			"Check the configuration file and environment variables",
			"Contact your administrator",
		},
	},
}

// New builds a *ServiceError for code with the canned user content.
// technical is stored as the technical message; cause may be nil.
func New(code Code, technical string, cause error) *ServiceError {
	e, ok := catalog[code]
	if !ok {
		code = CodeUnknown
		e = catalog[CodeUnknown]
	}
	return &ServiceError{
		Code:             code,
		Category:         code.Category(),
		UserMessage:      e.userMessage,
		TechnicalMessage: technical,
		Troubleshooting:  slices.Clone(e.troubleshooting),
		Retryable:        code.Retryable(),
		EstimatedFixTime: e.fixTime,
		Cause:            cause,
	}
}

// InvalidInput reports input rejected before any AI call.
func InvalidInput(msg string) *ServiceError {
	return New(CodeInvalidInput, msg, nil)
}

// TranscriptTooShort reports a transcript below the minimum word count.
func TranscriptTooShort(words, minWords int) *ServiceError {
	return New(CodeTranscriptTooShort,
		fmt.Sprintf("transcript has %d words, minimum is %d", words, minWords), nil)
}

// TranscriptTooLong reports a transcript above the token limit.
func TranscriptTooLong(tokens, maxTokens int) *ServiceError {
	return New(CodeTranscriptTooLong,
		fmt.Sprintf("transcript is ~%dK tokens, maximum is %dK", tokens/1000, maxTokens/1000), nil)
}

// ConfigError wraps a configuration problem.
func ConfigError(err error) *ServiceError {
	msg := "invalid configuration"
	if err != nil {
		msg = err.Error()
	}
	return New(CodeConfigError, msg, err)
}

// EmptyResponse reports an AI call that succeeded without usable content.
func EmptyResponse(op string) *ServiceError {
	return New(CodeEmptyResponse, fmt.Sprintf("%s returned no content", op), nil)
}

// ResponseTruncated reports a completion that stopped early.
func ResponseTruncated(reason string) *ServiceError {
	return New(CodeResponseTruncated, fmt.Sprintf("completion stopped early: %s", reason), nil)
}
