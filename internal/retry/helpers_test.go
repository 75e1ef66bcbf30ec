package retry_test

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alnah/go-medscribe/internal/retry"
)

// fakeSleeper records requested delays without waiting.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// newTestExecutor returns an executor that never sleeps and draws jitter
// from a fixed value.
func newTestExecutor(s *fakeSleeper, jitter float64, opts ...retry.Option) *retry.Executor {
	base := []retry.Option{
		retry.WithSleep(s.Sleep),
		retry.WithRand(func() float64 { return jitter }),
		retry.WithLogger(slog.New(slog.DiscardHandler)),
	}
	return retry.New(append(base, opts...)...)
}
