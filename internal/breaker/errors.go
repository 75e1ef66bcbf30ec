package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrOpen indicates a call rejected because the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// OpenError is returned instead of invoking the operation while the breaker
// is open, or while a half-open trial is already in flight (Remaining is 0).
type OpenError struct {
	Name      string
	Remaining time.Duration
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.Remaining <= 0 {
		return fmt.Sprintf("circuit breaker %q is open: recovery trial in progress", e.Name)
	}
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("circuit breaker %q is open: service temporarily unavailable, retry in %ds", e.Name, secs)
}

// Is matches ErrOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// StopRetry keeps an outer retry loop from retrying a rejection.
func (e *OpenError) StopRetry() bool {
	return true
}

// IsOpen reports whether err is a breaker rejection.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}
