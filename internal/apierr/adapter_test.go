package apierr_test

// Coverage Notes:
// - Tests build real SDK error values (go-openai, smithy-go) rather than fakes.
// - Each case asserts the normalized RawFailure fields and the final code.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-medscribe/internal/apierr"
)

// ---------------------------------------------------------------------------
// TestFailureFrom - SDK errors normalized at the boundary
// ---------------------------------------------------------------------------

func TestFailureFrom(t *testing.T) {
	t.Parallel()

	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{not json"), &v)
	}

	awsResponse := func(status int, inner error) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      inner,
		}
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantName   string
		wantCode   string
		want       apierr.Code
	}{
		{
			name:       "openai rate limit",
			err:        &openai.APIError{HTTPStatusCode: 429, Message: "Please slow down", Type: "requests"},
			wantStatus: 429,
			wantName:   "requests",
			want:       apierr.CodeRateLimitExceeded,
		},
		{
			name:       "openai model not found code",
			err:        &openai.APIError{HTTPStatusCode: 404, Code: "model_not_found", Message: "The model `gpt-9` does not exist"},
			wantStatus: 404,
			wantName:   "model_not_found",
			want:       apierr.CodeModelNotFound,
		},
		{
			name:       "openai wrapped 401",
			err:        fmt.Errorf("create completion: %w", &openai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key provided"}),
			wantStatus: 401,
			want:       apierr.CodeAuthenticationFailed,
		},
		{
			name:       "openai request error 503",
			err:        &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("upstream overloaded")},
			wantStatus: 503,
			want:       apierr.CodeServiceUnavailable,
		},
		{
			name:     "aws throttling",
			err:      awsResponse(400, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}),
			wantName: "ThrottlingException",
			want:     apierr.CodeRateLimitExceeded,
		},
		{
			name:     "aws access denied",
			err:      awsResponse(403, &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "You don't have access to the model"}),
			wantName: "AccessDeniedException",
			want:     apierr.CodeModelAccessDenied,
		},
		{
			name:     "aws validation",
			err:      awsResponse(400, &smithy.GenericAPIError{Code: "ValidationException", Message: "The provided model identifier is invalid"}),
			wantName: "ValidationException",
			want:     apierr.CodeModelNotFound,
		},
		{
			name:     "dns failure",
			err:      &net.DNSError{Err: "no such host", Name: "api.openai.com", IsNotFound: true},
			wantCode: "ENOTFOUND",
			want:     apierr.CodeNetworkOffline,
		},
		{
			name:     "connection refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			wantCode: "ECONNREFUSED",
			want:     apierr.CodeNetworkOffline,
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("post: %w", context.DeadlineExceeded),
			wantCode: "ETIMEDOUT",
			want:     apierr.CodeNetworkTimeout,
		},
		{
			name:     "malformed json",
			err:      fmt.Errorf("decode response: %w", syntaxErr),
			wantName: "SyntaxError",
			want:     apierr.CodeParsingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := apierr.FailureFrom(tt.err)

			if tt.wantStatus != 0 && raw.Status() != tt.wantStatus {
				t.Errorf("Status() = %d, want %d", raw.Status(), tt.wantStatus)
			}
			if tt.wantName != "" && raw.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", raw.Name, tt.wantName)
			}
			if tt.wantCode != "" && raw.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", raw.Code, tt.wantCode)
			}
			if got := apierr.Classify(tt.err).Code; got != tt.want {
				t.Errorf("Classify().Code = %s, want %s (raw %+v)", got, tt.want, raw)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestFailureFrom_AWSMetadata - status lives in nested metadata
// ---------------------------------------------------------------------------

func TestFailureFrom_AWSMetadata(t *testing.T) {
	t.Parallel()

	err := &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 503}},
		Err:      &smithy.GenericAPIError{Code: "ServiceUnavailableException", Message: "Bedrock is busy"},
	}

	raw := apierr.FailureFrom(err)
	if raw.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 (status belongs in metadata)", raw.StatusCode)
	}
	if raw.Metadata == nil || raw.Metadata.HTTPStatusCode != 503 {
		t.Fatalf("Metadata = %+v, want HTTPStatusCode 503", raw.Metadata)
	}
	if got := apierr.ClassifyFailure(raw); got.Code != apierr.CodeServiceUnavailable {
		t.Errorf("Code = %s, want SERVICE_UNAVAILABLE", got.Code)
	}
}

// ---------------------------------------------------------------------------
// TestFailureFrom_Nil
// ---------------------------------------------------------------------------

func TestFailureFrom_Nil(t *testing.T) {
	t.Parallel()

	if got := apierr.FailureFrom(nil); got != (apierr.RawFailure{}) {
		t.Errorf("FailureFrom(nil) = %+v, want zero value", got)
	}
}
