package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/metrics"
)

// RetryEvent describes a retry about to happen.
type RetryEvent struct {
	// AttemptNumber is the 1-indexed retry about to run.
	AttemptNumber int
	// TotalAttempts is the configured retry budget (Config.MaxRetries).
	TotalAttempts int
	Delay         time.Duration
	// Reason is the user-facing message of the failure being retried.
	Reason string
	Err    *apierr.ServiceError
}

// OnRetry is called before each backoff sleep. It may be nil.
type OnRetry func(RetryEvent)

// Executor runs operations with classified retries.
// An Executor holds no per-call state and is safe for concurrent use.
type Executor struct {
	classifier *apierr.Classifier
	logger     *slog.Logger
	metrics    *metrics.Recorder
	sleep      func(context.Context, time.Duration) error
	rand       func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithClassifier sets the classifier used for raw failures.
func WithClassifier(c *apierr.Classifier) Option {
	return func(e *Executor) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithSleep replaces the backoff wait (for testing).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithRand replaces the jitter source; fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(e *Executor) {
		if fn != nil {
			e.rand = fn
		}
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		classifier: apierr.NewClassifier(),
		logger:     slog.Default(),
		sleep:      sleepWithContext,
		rand:       rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs op with retries. See Run.
func (e *Executor) Do(ctx context.Context, cfg Config, op func(context.Context) error, onRetry OnRetry) error {
	_, err := Run(ctx, e, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, onRetry)
	return err
}

// Run executes op, retrying classified retryable failures with backoff.
// op is invoked at most cfg.MaxRetries+1 times.
//
// The returned error is one of:
//   - *apierr.ServiceError: non-retryable failure, or retries exhausted
//   - ErrCanceled (wrapping the context error): ctx ended the loop
//   - a Stopper error returned by op, unchanged
func Run[T any](ctx context.Context, e *Executor, cfg Config, op func(context.Context) (T, error), onRetry OnRetry) (T, error) {
	if e == nil {
		e = New()
	}
	cfg = cfg.normalized()
	log := e.logger.With("op_id", uuid.NewString())

	var zero T
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("AI call succeeded after retry", "retries", attempt)
			}
			return result, nil
		}

		switch {
		case errors.Is(err, ErrCanceled), stops(err):
			return zero, err
		case ctx.Err() != nil:
			return zero, canceled(ctx.Err())
		}

		se := e.classifier.Classify(err)
		e.metrics.ObserveFailure(string(se.Code), string(se.Category))

		if !se.Code.Retryable() {
			log.Warn("AI call failed, not retryable",
				"code", se.Code, "category", se.Category, "error", se.TechnicalMessage)
			return zero, se
		}

		next := attempt + 1
		if next > cfg.MaxRetries {
			log.Warn("AI call failed, retries exhausted",
				"code", se.Code, "attempts", next, "error", se.TechnicalMessage)
			return zero, se
		}

		delay := Delay(se.Code, next, cfg, e.rand)
		log.Info("AI call failed, retrying",
			"code", se.Code, "attempt", next, "max_retries", cfg.MaxRetries, "delay", delay)
		e.metrics.ObserveRetry(string(se.Code), delay)

		if onRetry != nil {
			onRetry(RetryEvent{
				AttemptNumber: next,
				TotalAttempts: cfg.MaxRetries,
				Delay:         delay,
				Reason:        se.UserMessage,
				Err:           se,
			})
		}

		if err := e.sleep(ctx, delay); err != nil {
			return zero, canceled(err)
		}
	}
}

// sleepWithContext waits for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
