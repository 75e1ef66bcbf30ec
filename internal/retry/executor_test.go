package retry_test

// Coverage Notes:
// - Invocation budget is MaxRetries+1 for retryable failures.
// - Non-retryable failures return after a single call without sleeping.
// - Delays observed by the sleeper fall within DelayBounds.
// - Cancellation during an attempt or a backoff yields ErrCanceled.
// - Stopper errors bypass classification.
// - onRetry events and Prometheus counters are checked for one scenario each.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/metrics"
	"github.com/alnah/go-medscribe/internal/retry"
)

// stopErr asks the executor to stop without classification.
type stopErr struct{}

func (stopErr) Error() string   { return "stop" }
func (stopErr) StopRetry() bool { return true }

// ---------------------------------------------------------------------------
// TestRun - Retry loop behavior
// ---------------------------------------------------------------------------

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("success on first try returns immediately", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		got, err := retry.Run(context.Background(), newTestExecutor(s, 0), retry.DefaultConfig,
			func(context.Context) (string, error) {
				calls++
				return "note", nil
			}, nil)

		if err != nil {
			t.Fatalf("Run() unexpected error: %v", err)
		}
		if got != "note" {
			t.Errorf("got %q, want %q", got, "note")
		}
		if calls != 1 {
			t.Errorf("call count = %d, want 1", calls)
		}
		if len(s.Delays()) != 0 {
			t.Errorf("slept %d times, want 0", len(s.Delays()))
		}
	})

	t.Run("wrapped sentinel is retried by its code", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		_, err := retry.Run(context.Background(), newTestExecutor(s, 0), retry.DefaultConfig,
			func(context.Context) (int, error) {
				calls++
				return 0, fmt.Errorf("upstream: %w", apierr.ErrRateLimit)
			}, nil)

		if calls != retry.DefaultConfig.MaxRetries+1 {
			t.Errorf("call count = %d, want %d", calls, retry.DefaultConfig.MaxRetries+1)
		}
		se, ok := apierr.As(err)
		if !ok {
			t.Fatalf("error = %v, want *ServiceError", err)
		}
		if se.Code != apierr.CodeRateLimitExceeded || se.Category != apierr.CodeRateLimitExceeded.Category() || !se.Retryable {
			t.Errorf("error = %+v, want retryable RATE_LIMIT_EXCEEDED", se)
		}
		if se.UserMessage == "" || len(se.Troubleshooting) == 0 {
			t.Error("classified sentinel is missing user diagnostics")
		}
	})

	t.Run("no retries config makes a single attempt", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		_, err := retry.Run(context.Background(), newTestExecutor(s, 0), retry.NoRetries,
			func(context.Context) (int, error) {
				calls++
				return 0, errors.New("service unavailable")
			}, nil)

		if !errors.Is(err, apierr.ErrServiceUnavailable) {
			t.Fatalf("error = %v, want SERVICE_UNAVAILABLE", err)
		}
		if calls != 1 || len(s.Delays()) != 0 {
			t.Errorf("calls = %d, sleeps = %d, want 1 and 0", calls, len(s.Delays()))
		}
	})

	t.Run("retryable failure invokes MaxRetries plus one times", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		cfg := retry.Config{MaxRetries: 4, BaseDelay: 1, MaxDelay: 1, ExponentialBase: 2}
		_, err := retry.Run(context.Background(), newTestExecutor(s, 0), cfg,
			func(context.Context) (int, error) {
				calls++
				return 0, errors.New("service unavailable")
			}, nil)

		if !errors.Is(err, apierr.ErrServiceUnavailable) {
			t.Fatalf("error = %v, want SERVICE_UNAVAILABLE", err)
		}
		if calls != 5 {
			t.Errorf("call count = %d, want 5", calls)
		}
		if len(s.Delays()) != 4 {
			t.Errorf("slept %d times, want 4", len(s.Delays()))
		}
	})

	t.Run("MaxRetries 0 means single attempt", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		cfg := retry.Config{MaxRetries: 0, BaseDelay: 1, MaxDelay: 1, ExponentialBase: 2}
		_, err := retry.Run(context.Background(), newTestExecutor(s, 0), cfg,
			func(context.Context) (int, error) {
				calls++
				return 0, errors.New("network timeout")
			}, nil)

		if !errors.Is(err, apierr.ErrNetworkTimeout) {
			t.Fatalf("error = %v, want NETWORK_TIMEOUT", err)
		}
		if calls != 1 {
			t.Errorf("call count = %d, want 1", calls)
		}
	})

	t.Run("non-retryable failure stops without sleeping", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			err  error
			want *apierr.ServiceError
		}{
			{"authentication", errors.New("Incorrect API key provided"), apierr.ErrAuthFailed},
			{"access denied", errors.New("AccessDenied: not authorized to invoke model"), apierr.ErrModelAccessDenied},
			{"validation", apierr.TranscriptTooShort(3, 20), apierr.ErrTranscriptTooShort},
			{"config", apierr.ConfigError(errors.New("missing key")), apierr.ErrConfig},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				s := &fakeSleeper{}
				calls := 0
				_, err := retry.Run(context.Background(), newTestExecutor(s, 0), retry.DefaultConfig,
					func(context.Context) (int, error) {
						calls++
						return 0, tt.err
					}, nil)

				if !errors.Is(err, tt.want) {
					t.Errorf("error = %v, want %s", err, tt.want.Code)
				}
				if calls != 1 {
					t.Errorf("call count = %d, want 1", calls)
				}
				if len(s.Delays()) != 0 {
					t.Errorf("slept %d times, want 0", len(s.Delays()))
				}
			})
		}
	})

	t.Run("network timeouts then success", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		var events []retry.RetryEvent
		got, err := retry.Run(context.Background(), newTestExecutor(s, 0.5), retry.DefaultConfig,
			func(context.Context) (string, error) {
				calls++
				if calls <= 2 {
					return "", errors.New("request timeout")
				}
				return "ok", nil
			},
			func(ev retry.RetryEvent) { events = append(events, ev) },
		)

		if err != nil {
			t.Fatalf("Run() unexpected error: %v", err)
		}
		if got != "ok" {
			t.Errorf("got %q, want %q", got, "ok")
		}
		if calls != 3 {
			t.Errorf("call count = %d, want 3", calls)
		}

		delays := s.Delays()
		if len(delays) != 2 {
			t.Fatalf("slept %d times, want 2", len(delays))
		}
		for i, d := range delays {
			lo, hi := retry.DelayBounds(apierr.CodeNetworkTimeout, i+1, retry.DefaultConfig)
			if d < lo || d > hi {
				t.Errorf("delay %d = %v, outside [%v, %v]", i+1, d, lo, hi)
			}
		}

		if len(events) != 2 {
			t.Fatalf("onRetry called %d times, want 2", len(events))
		}
		for i, ev := range events {
			if ev.AttemptNumber != i+1 {
				t.Errorf("event %d AttemptNumber = %d, want %d", i, ev.AttemptNumber, i+1)
			}
			if ev.TotalAttempts != retry.DefaultConfig.MaxRetries {
				t.Errorf("event %d TotalAttempts = %d, want %d", i, ev.TotalAttempts, retry.DefaultConfig.MaxRetries)
			}
			if ev.Delay != delays[i] {
				t.Errorf("event %d Delay = %v, slept %v", i, ev.Delay, delays[i])
			}
			if ev.Err == nil || ev.Err.Code != apierr.CodeNetworkTimeout {
				t.Errorf("event %d Err = %v, want NETWORK_TIMEOUT", i, ev.Err)
			}
			if ev.Reason == "" {
				t.Errorf("event %d Reason is empty", i)
			}
		}
	})

	t.Run("cancellation during backoff returns ErrCanceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		e := retry.New(
			retry.WithSleep(func(ctx context.Context, _ time.Duration) error {
				cancel()
				return ctx.Err()
			}),
			retry.WithLogger(slog.New(slog.DiscardHandler)),
		)

		_, err := retry.Run(ctx, e, retry.DefaultConfig,
			func(context.Context) (int, error) {
				calls++
				return 0, errors.New("rate limit reached")
			}, nil)

		if !errors.Is(err, retry.ErrCanceled) {
			t.Errorf("error = %v, want ErrCanceled", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want wrapped context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("call count = %d, want 1", calls)
		}
	})

	t.Run("cancellation during attempt is not classified", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		s := &fakeSleeper{}
		_, err := retry.Run(ctx, newTestExecutor(s, 0), retry.DefaultConfig,
			func(ctx context.Context) (int, error) {
				cancel()
				return 0, ctx.Err()
			}, nil)

		if !errors.Is(err, retry.ErrCanceled) {
			t.Errorf("error = %v, want ErrCanceled", err)
		}
		if _, ok := apierr.As(err); ok {
			t.Errorf("error = %v, should not be a ServiceError", err)
		}
	})

	t.Run("real sleep honors cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		e := retry.New(retry.WithLogger(slog.New(slog.DiscardHandler)))
		start := time.Now()
		_, err := retry.Run(ctx, e, retry.DefaultConfig,
			func(context.Context) (int, error) {
				return 0, errors.New("rate limit reached")
			}, nil)

		if !errors.Is(err, retry.ErrCanceled) {
			t.Errorf("error = %v, want ErrCanceled", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("Run() took %v, backoff ignored cancellation", elapsed)
		}
	})

	t.Run("stopper error is returned unchanged", func(t *testing.T) {
		t.Parallel()

		s := &fakeSleeper{}
		calls := 0
		_, err := retry.Run(context.Background(), newTestExecutor(s, 0), retry.DefaultConfig,
			func(context.Context) (int, error) {
				calls++
				return 0, stopErr{}
			}, nil)

		if _, ok := err.(stopErr); !ok {
			t.Errorf("error = %T, want stopErr", err)
		}
		if calls != 1 {
			t.Errorf("call count = %d, want 1", calls)
		}
	})

	t.Run("nil executor uses defaults", func(t *testing.T) {
		t.Parallel()

		got, err := retry.Run(context.Background(), nil, retry.DefaultConfig,
			func(context.Context) (int, error) { return 7, nil }, nil)
		if err != nil || got != 7 {
			t.Errorf("Run() = %d, %v; want 7, nil", got, err)
		}
	})
}

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	rec := metrics.NewRecorder(prometheus.NewRegistry())
	s := &fakeSleeper{}
	e := newTestExecutor(s, 0, retry.WithMetrics(rec))

	cfg := retry.Config{MaxRetries: 2, BaseDelay: 1, MaxDelay: 1, ExponentialBase: 2}
	_, _ = retry.Run(context.Background(), e, cfg,
		func(context.Context) (int, error) {
			return 0, errors.New("network timeout")
		}, nil)

	if got := testutil.ToFloat64(rec.Failures.WithLabelValues("NETWORK_TIMEOUT", "network")); got != 3 {
		t.Errorf("failures = %v, want 3", got)
	}
	if got := testutil.ToFloat64(rec.Retries.WithLabelValues("NETWORK_TIMEOUT")); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// TestExecutorDo - Error-only wrapper
// ---------------------------------------------------------------------------

func TestExecutorDo(t *testing.T) {
	t.Parallel()

	s := &fakeSleeper{}
	calls := 0
	err := newTestExecutor(s, 0).Do(context.Background(), retry.DefaultConfig,
		func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("unexpected token in JSON")
			}
			return nil
		}, nil)

	if err != nil {
		t.Fatalf("Do() unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("call count = %d, want 2", calls)
	}
	if d := s.Delays(); len(d) != 1 || d[0] != 500*time.Millisecond {
		t.Errorf("delays = %v, want [500ms]", d)
	}
}

// ---------------------------------------------------------------------------
// TestSleepWithContext
// ---------------------------------------------------------------------------

func TestSleepWithContext(t *testing.T) {
	t.Parallel()

	t.Run("zero delay returns immediately", func(t *testing.T) {
		t.Parallel()
		if err := retry.SleepWithContext(context.Background(), 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("canceled context returns its error", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := retry.SleepWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}
