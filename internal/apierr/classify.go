package apierr

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Metadata carries transport details some SDKs nest under the error.
type Metadata struct {
	HTTPStatusCode int
	RequestID      string
}

// RawFailure is the normalized shape of a provider failure before classification.
// Zero values mean "not known".
type RawFailure struct {
	StatusCode int
	// Name is the exception or error type name, e.g. "ThrottlingException".
	Name string
	// Code is an errno-style code, e.g. "ETIMEDOUT" or "ENOTFOUND".
	Code     string
	Message  string
	Metadata *Metadata
}

// Status returns the HTTP status, falling back to the nested metadata.
func (r RawFailure) Status() int {
	if r.StatusCode != 0 {
		return r.StatusCode
	}
	if r.Metadata != nil {
		return r.Metadata.HTTPStatusCode
	}
	return 0
}

// messageContains reports whether the lowercased message contains any needle.
func (r RawFailure) messageContains(needles ...string) bool {
	msg := strings.ToLower(r.Message)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

func (r RawFailure) nameIs(names ...string) bool {
	return r.Name != "" && slices.Contains(names, r.Name)
}

func (r RawFailure) codeIs(codes ...string) bool {
	return r.Code != "" && slices.Contains(codes, strings.ToUpper(r.Code))
}

// describe renders the failure for technical messages.
func (r RawFailure) describe() string {
	var parts []string
	if s := r.Status(); s != 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", s))
	}
	if r.Name != "" {
		parts = append(parts, r.Name)
	}
	if r.Code != "" {
		parts = append(parts, r.Code)
	}
	head := strings.Join(parts, " ")
	switch {
	case head == "" && r.Message == "":
		return "unrecognized failure"
	case head == "":
		return r.Message
	case r.Message == "":
		return head
	}
	return head + ": " + r.Message
}

// Rule maps failures matching a predicate to a ServiceError.
type Rule struct {
	Name  string
	Match func(RawFailure) bool
	Build func(RawFailure, error) *ServiceError
}

// fromCode returns a Build func producing code with the raw failure described.
func fromCode(code Code) func(RawFailure, error) *ServiceError {
	return func(r RawFailure, cause error) *ServiceError {
		return New(code, r.describe(), cause)
	}
}

// defaultRules is the ordered classification table. First match wins, so
// order encodes precedence (e.g. a 429 whose message says "timeout" is a
// network timeout).
var defaultRules = []Rule{
	{
		Name: "network-timeout",
		Match: func(r RawFailure) bool {
			return r.messageContains("network", "timeout") || r.codeIs("ETIMEDOUT", "ECONNRESET")
		},
		Build: fromCode(CodeNetworkTimeout),
	},
	{
		Name: "network-offline",
		Match: func(r RawFailure) bool {
			return r.messageContains("offline") || r.codeIs("ENOTFOUND", "EAI_AGAIN", "ECONNREFUSED", "ENETUNREACH")
		},
		Build: fromCode(CodeNetworkOffline),
	},
	{
		Name: "rate-limit",
		Match: func(r RawFailure) bool {
			return r.Status() == http.StatusTooManyRequests ||
				r.nameIs("ThrottlingException", "TooManyRequestsException", "rate_limit_exceeded", "rate_limit_error") ||
				r.messageContains("too many requests", "rate limit")
		},
		Build: fromCode(CodeRateLimitExceeded),
	},
	{
		Name: "access-denied",
		Match: func(r RawFailure) bool {
			return r.Status() == http.StatusForbidden ||
				r.nameIs("AccessDeniedException") ||
				r.messageContains("not authorized", "access denied")
		},
		Build: fromCode(CodeModelAccessDenied),
	},
	{
		Name: "authentication",
		Match: func(r RawFailure) bool {
			return r.Status() == http.StatusUnauthorized ||
				r.messageContains("authentication", "invalid api key", "incorrect api key")
		},
		Build: fromCode(CodeAuthenticationFailed),
	},
	{
		Name: "model-not-found",
		Match: func(r RawFailure) bool {
			return r.nameIs("ValidationException", "model_not_found") ||
				(r.messageContains("model") && r.messageContains("not found"))
		},
		Build: fromCode(CodeModelNotFound),
	},
	{
		Name: "service-unavailable",
		Match: func(r RawFailure) bool {
			return r.Status() == http.StatusServiceUnavailable ||
				r.messageContains("service unavailable", "temporarily unavailable")
		},
		Build: fromCode(CodeServiceUnavailable),
	},
	{
		Name: "parsing",
		Match: func(r RawFailure) bool {
			return r.messageContains("parse", "json", "invalid format") || r.nameIs("SyntaxError", "UnmarshalTypeError")
		},
		Build: fromCode(CodeParsingFailed),
	},
}

// DefaultRules returns a copy of the built-in ordered rule table.
func DefaultRules() []Rule {
	return slices.Clone(defaultRules)
}

// Classifier turns raw failures into ServiceErrors using an ordered rule table.
// A Classifier is immutable and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier. Extra rules are evaluated before the
// built-in ones, in the order given.
func NewClassifier(extra ...Rule) *Classifier {
	rules := make([]Rule, 0, len(extra)+len(defaultRules))
	rules = append(rules, extra...)
	rules = append(rules, defaultRules...)
	return &Classifier{rules: rules}
}

// Classify maps any error to a *ServiceError. It never panics and never
// returns nil: a *ServiceError already in the chain is returned unchanged,
// nil and unrecognized errors become UNKNOWN_ERROR.
func (c *Classifier) Classify(err error) (se *ServiceError) {
	if err == nil {
		return New(CodeUnknown, "no error information available", nil)
	}
	if typed, ok := As(err); ok && typed != nil {
		if typed.consistent() {
			return typed
		}
		// Bare sentinels and hand-built errors carry only a code.
		technical := typed.TechnicalMessage
		if technical == "" {
			technical = err.Error()
		}
		return New(typed.Code, technical, err)
	}
	// Malformed errors (typed nil pointers, panicking Error methods) and
	// sloppy custom rules must not escape classification.
	defer func() {
		if p := recover(); p != nil {
			se = New(CodeUnknown, fmt.Sprintf("unclassifiable failure: %v", p), err)
		}
	}()
	return c.classify(FailureFrom(err), err)
}

// ClassifyFailure maps an already-normalized failure to a *ServiceError.
func (c *Classifier) ClassifyFailure(r RawFailure) (se *ServiceError) {
	defer func() {
		if p := recover(); p != nil {
			se = New(CodeUnknown, fmt.Sprintf("unclassifiable failure: %v", p), nil)
		}
	}()
	return c.classify(r, nil)
}

func (c *Classifier) classify(r RawFailure, cause error) *ServiceError {
	for _, rule := range c.rules {
		if rule.Match == nil || rule.Build == nil || !rule.Match(r) {
			continue
		}
		if se := rule.Build(r, cause); se != nil {
			return se
		}
	}
	return New(CodeUnknown, r.describe(), cause)
}

// defaultClassifier backs the package-level helpers.
var defaultClassifier = NewClassifier()

// Classify maps err to a *ServiceError with the built-in rules.
func Classify(err error) *ServiceError {
	return defaultClassifier.Classify(err)
}

// ClassifyFailure maps a normalized failure with the built-in rules.
func ClassifyFailure(r RawFailure) *ServiceError {
	return defaultClassifier.ClassifyFailure(r)
}

// IsRetryable reports whether err, once classified, is worth retrying.
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}

// CategoryOf returns the category err classifies into.
func CategoryOf(err error) Category {
	return Classify(err).Category
}
