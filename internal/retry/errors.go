package retry

import (
	"errors"
	"fmt"

	"github.com/alnah/go-medscribe/internal/apierr"
)

// ErrCanceled indicates the caller's context ended the retry loop.
// It wraps the context error and is never classified into the taxonomy.
var ErrCanceled = errors.New("retry canceled")

// canceled wraps a context error so both ErrCanceled and the context cause match.
func canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// Stopper is implemented by errors that must end a retry loop as they are,
// without classification (e.g. an open circuit breaker rejecting the call).
type Stopper interface {
	error
	StopRetry() bool
}

// stops reports whether err carries a Stopper asking to stop.
func stops(err error) bool {
	var s Stopper
	return errors.As(err, &s) && s.StopRetry()
}

// FallbackError reports that both the primary and the fallback leg failed.
// Unwrap lists the fallback error first, so errors.As for *apierr.ServiceError
// yields the fallback's classification while the primary stays reachable.
type FallbackError struct {
	Primary  error
	Fallback error
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback failed: %v (primary: %v)", e.Fallback, e.Primary)
}

// Unwrap returns the fallback and primary errors, in that order.
func (e *FallbackError) Unwrap() []error {
	return []error{e.Fallback, e.Primary}
}

// PrimaryServiceError returns the primary leg's classified error, if any.
func (e *FallbackError) PrimaryServiceError() (*apierr.ServiceError, bool) {
	return apierr.As(e.Primary)
}

// Final returns the error that decided a call's outcome: the fallback leg's
// error for a *FallbackError, err itself otherwise.
func Final(err error) error {
	var fe *FallbackError
	if errors.As(err, &fe) && fe.Fallback != nil {
		return fe.Fallback
	}
	return err
}
