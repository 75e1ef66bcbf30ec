package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/aws/smithy-go"
	openai "github.com/sashabaranov/go-openai"
)

// httpStatusCoder is implemented by AWS SDK response errors.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// requestIDer is implemented by AWS SDK response errors.
type requestIDer interface {
	ServiceRequestID() string
}

// FailureFrom normalizes an SDK or transport error into a RawFailure.
// It understands go-openai errors, AWS smithy API errors, net and DNS errors,
// context deadlines and encoding/json errors. Anything else keeps only its message.
func FailureFrom(err error) RawFailure {
	if err == nil {
		return RawFailure{}
	}

	r := RawFailure{Message: err.Error()}

	// OpenAI API errors carry the most precise message; prefer it over the
	// wrapped chain which may include caller context.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		r.StatusCode = apiErr.HTTPStatusCode
		r.Message = apiErr.Message
		r.Name = openAIErrorName(apiErr)
		return r
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr != nil {
		r.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			r.Message = reqErr.Err.Error()
		}
	}

	// AWS SDK errors: exception name plus status in nested metadata.
	var awsErr smithy.APIError
	if errors.As(err, &awsErr) {
		r.Name = awsErr.ErrorCode()
		if msg := awsErr.ErrorMessage(); msg != "" {
			r.Message = msg
		}
	}
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		md := &Metadata{HTTPStatusCode: sc.HTTPStatusCode()}
		var rid requestIDer
		if errors.As(err, &rid) {
			md.RequestID = rid.ServiceRequestID()
		}
		r.Metadata = md
	}

	r.Code = transportCode(err)

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		r.Name = "SyntaxError"
	case errors.As(err, &typeErr):
		r.Name = "UnmarshalTypeError"
	}

	return r
}

// transportCode derives an errno-style code from network and context errors.
func transportCode(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr != nil {
		if dnsErr.IsTimeout {
			return "ETIMEDOUT"
		}
		if dnsErr.IsTemporary {
			return "EAI_AGAIN"
		}
		return "ENOTFOUND"
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ENETUNREACH):
		return "ENETUNREACH"
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}
	return ""
}

// openAIErrorName picks the most specific identifier of an OpenAI error:
// the machine code when it is a string ("model_not_found"), else the type.
func openAIErrorName(e *openai.APIError) string {
	switch c := e.Code.(type) {
	case string:
		if c != "" {
			return c
		}
	case nil:
	default:
		if s := fmt.Sprint(c); s != "" {
			return s
		}
	}
	return e.Type
}
