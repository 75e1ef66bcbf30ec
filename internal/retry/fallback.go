package retry

import (
	"context"
	"errors"
)

// Fallback runs primary and, if it fails, fallback. Both legs are expected to
// handle their own retries (see RunWithFallback) and may be wrapped in a
// circuit breaker by the caller.
//
// Cancellation of either leg is returned as is. When both legs fail the error
// is a *FallbackError carrying both failures.
func Fallback[T any](ctx context.Context, primary, fallback func(context.Context) (T, error)) (T, error) {
	result, primaryErr := primary(ctx)
	if primaryErr == nil {
		return result, nil
	}
	if errors.Is(primaryErr, ErrCanceled) {
		return result, primaryErr
	}
	if err := ctx.Err(); err != nil {
		return result, canceled(err)
	}

	result, fallbackErr := fallback(ctx)
	if fallbackErr == nil {
		return result, nil
	}
	if errors.Is(fallbackErr, ErrCanceled) {
		return result, fallbackErr
	}
	return result, &FallbackError{Primary: primaryErr, Fallback: fallbackErr}
}

// RunWithFallback runs primary through e with primaryCfg until exhaustion,
// then fallback with fallbackCfg. When both fail, errors.As on the result
// yields the fallback's *apierr.ServiceError; the primary failure is kept in
// the *FallbackError.
func RunWithFallback[T any](
	ctx context.Context,
	e *Executor,
	primary, fallback func(context.Context) (T, error),
	primaryCfg, fallbackCfg Config,
	onRetry OnRetry,
) (T, error) {
	return Fallback(ctx,
		func(ctx context.Context) (T, error) {
			return Run(ctx, e, primaryCfg, primary, onRetry)
		},
		func(ctx context.Context) (T, error) {
			if e != nil {
				e.logger.Info("primary AI call failed, switching to fallback")
			}
			return Run(ctx, e, fallbackCfg, fallback, onRetry)
		},
	)
}
