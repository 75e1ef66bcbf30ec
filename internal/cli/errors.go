package cli

import (
	"errors"
	"fmt"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/retry"
)

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrOutputWithMany indicates --output was combined with several inputs.
	ErrOutputWithMany = errors.New("--output requires a single input file")
)

// Describe renders err for the terminal. Classified AI failures get the
// full troubleshooting layout; everything else prints its message.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	final := retry.Final(err)
	if breaker.IsOpen(final) {
		return final.Error()
	}

	se, ok := apierr.As(final)
	if !ok {
		return err.Error()
	}

	out := apierr.FormatForUser(se)
	var fe *retry.FallbackError
	if errors.As(err, &fe) {
		if primary, ok := fe.PrimaryServiceError(); ok {
			out = fmt.Sprintf("Primary model failed (%s); fallback model also failed.\n\n%s", primary.Code, out)
		} else if breaker.IsOpen(fe.Primary) {
			out = fmt.Sprintf("Primary model unavailable (%v); fallback model failed.\n\n%s", fe.Primary, out)
		}
	}
	return out
}
