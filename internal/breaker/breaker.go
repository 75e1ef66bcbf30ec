// Package breaker gates AI calls behind a consecutive-failure circuit breaker.
//
// A Breaker wraps a retry.Executor. While CLOSED, calls run through the
// executor and every exhausted failure is counted; once the count reaches the
// threshold the breaker OPENS and rejects calls with *OpenError without
// invoking the operation. After the open timeout the next call is let through
// as a single HALF_OPEN trial: success closes the breaker, failure reopens it.
//
// Create one Breaker per operation family and share it across goroutines:
//
//	chat := breaker.New("chat", exec)
//	note, err := breaker.Run(ctx, chat, cfg, generate, nil)
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alnah/go-medscribe/internal/metrics"
	"github.com/alnah/go-medscribe/internal/retry"
)

// Default settings.
const (
	DefaultThreshold   = 5
	DefaultOpenTimeout = 60 * time.Second
)

// State is the breaker state.
type State int

// Breaker states. Values match the breaker_state metric.
const (
	StateClosed   State = metrics.StateClosed
	StateHalfOpen State = metrics.StateHalfOpen
	StateOpen     State = metrics.StateOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a read-only snapshot for dashboards and health checks.
type Status struct {
	Name           string        `json:"name"`
	State          State         `json:"state"`
	IsOpen         bool          `json:"is_open"`
	Failures       int           `json:"failures"`
	TimeUntilReset time.Duration `json:"time_until_reset"`
}

// Breaker is a circuit breaker around a retry executor.
// All state is guarded by mu; a Breaker is safe for concurrent use.
type Breaker struct {
	name        string
	exec        *retry.Executor
	threshold   int
	openTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Recorder

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	trialInFlight       bool
	// trialID identifies the current half-open trial; 0 means none.
	trialID uint64
	nextID  uint64
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold sets the consecutive failures that open the breaker.
// Values below 1 are ignored.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before a trial call.
// Non-positive values are ignored.
func WithOpenTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.openTimeout = d
		}
	}
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(b *Breaker) {
		b.metrics = m
	}
}

// New creates a closed Breaker. A nil exec uses retry.New().
func New(name string, exec *retry.Executor, opts ...Option) *Breaker {
	if exec == nil {
		exec = retry.New()
	}
	b := &Breaker{
		name:        name,
		exec:        exec,
		threshold:   DefaultThreshold,
		openTimeout: DefaultOpenTimeout,
		now:         time.Now,
		logger:      slog.Default(),
		state:       StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("breaker", name)
	b.metrics.SetBreakerState(name, int(StateClosed))
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Do runs op through the breaker. See Run.
func (b *Breaker) Do(ctx context.Context, cfg retry.Config, op func(context.Context) error, onRetry retry.OnRetry) error {
	_, err := Run(ctx, b, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, onRetry)
	return err
}

// Run executes op through b's retry executor unless the breaker is open.
// A rejection returns *OpenError without invoking op.
func Run[T any](ctx context.Context, b *Breaker, cfg retry.Config, op func(context.Context) (T, error), onRetry retry.OnRetry) (T, error) {
	var zero T
	trial, err := b.acquire()
	if err != nil {
		return zero, err
	}

	result, err := retry.Run(ctx, b.exec, cfg, op, onRetry)
	b.record(err, trial)
	return result, err
}

// acquire admits a call or returns an *OpenError. A non-zero trial
// identifies the single half-open trial call.
func (b *Breaker) acquire() (trial uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return 0, nil
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailureAt)
		if elapsed < b.openTimeout {
			return 0, b.reject(b.openTimeout - elapsed)
		}
		b.transition(StateHalfOpen)
		return b.startTrial(), nil
	default: // half-open
		if b.trialInFlight {
			return 0, b.reject(0)
		}
		return b.startTrial(), nil
	}
}

// startTrial must be called with mu held.
func (b *Breaker) startTrial() uint64 {
	b.nextID++
	b.trialID = b.nextID
	b.trialInFlight = true
	return b.trialID
}

// reject must be called with mu held.
func (b *Breaker) reject(remaining time.Duration) error {
	b.metrics.ObserveRejection(b.name)
	b.logger.Debug("call rejected by open breaker", "remaining", remaining)
	return &OpenError{Name: b.name, Remaining: remaining}
}

// record updates the state from a call outcome. A trial only decides the
// state while the breaker is still half-open on that same trial; a trial
// overtaken by a late success counts like any closed-state call.
func (b *Breaker) record(err error, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trial := id != 0 && id == b.trialID && b.state == StateHalfOpen
	if trial {
		b.trialInFlight = false
		b.trialID = 0
	}

	switch {
	case err == nil:
		if b.consecutiveFailures > 0 || b.state != StateClosed {
			b.logger.Info("breaker reset after success", "failures", b.consecutiveFailures)
		}
		b.consecutiveFailures = 0
		b.trialInFlight = false
		b.trialID = 0
		b.transition(StateClosed)

	case errors.Is(err, retry.ErrCanceled):
		// Cancellation is not counted. lastFailureAt is unchanged, so after
		// an aborted trial the next call is admitted as a trial right away.
		if trial {
			b.transition(StateOpen)
		}

	default:
		b.consecutiveFailures++
		b.lastFailureAt = b.now()
		if trial || b.consecutiveFailures >= b.threshold {
			b.transition(StateOpen)
		}
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.metrics.SetBreakerState(b.name, int(to))
	b.logger.Info("breaker state changed",
		"from", from.String(), "state", to.String(), "failures", b.consecutiveFailures)
}

// Status returns a snapshot of the breaker. An open breaker whose timeout
// has elapsed reports IsOpen false and TimeUntilReset 0: the next call will
// be let through.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Name:     b.name,
		State:    b.state,
		Failures: b.consecutiveFailures,
	}
	if b.state == StateOpen {
		if remaining := b.openTimeout - b.now().Sub(b.lastFailureAt); remaining > 0 {
			s.IsOpen = true
			s.TimeUntilReset = remaining
		}
	}
	return s
}
