package retry

import (
	"math"
	"time"

	"github.com/alnah/go-medscribe/internal/apierr"
)

// Fixed backoff parameters per failure family. Only the default family
// follows Config.BaseDelay and Config.JitterMax.
const (
	rateLimitBase   = 10 * time.Second
	rateLimitJitter = 5 * time.Second

	unavailableBase   = 5 * time.Second
	unavailableJitter = 2 * time.Second

	networkBase   = 2 * time.Second
	networkCap    = 15 * time.Second
	networkJitter = 1 * time.Second

	quickFixDelay  = 500 * time.Millisecond
	quickFixCap    = 2 * time.Second
	quickFixJitter = 500 * time.Millisecond
)

// backoff describes one delay family.
type backoff struct {
	base   time.Duration
	factor float64 // 0 means constant delay
	cap    time.Duration
	jitter time.Duration
}

func backoffFor(code apierr.Code, cfg Config) backoff {
	switch code {
	case apierr.CodeRateLimitExceeded:
		// Rate limits always double regardless of the configured base.
		return backoff{base: rateLimitBase, factor: 2, cap: cfg.MaxDelay, jitter: rateLimitJitter}
	case apierr.CodeServiceUnavailable:
		return backoff{base: unavailableBase, factor: cfg.ExponentialBase, cap: cfg.MaxDelay, jitter: unavailableJitter}
	case apierr.CodeNetworkTimeout, apierr.CodeNetworkOffline:
		return backoff{base: networkBase, factor: cfg.ExponentialBase, cap: networkCap, jitter: networkJitter}
	case apierr.CodeParsingFailed, apierr.CodeModelNotFound:
		return backoff{base: quickFixDelay, cap: quickFixCap, jitter: quickFixJitter}
	}
	return backoff{base: cfg.BaseDelay, factor: cfg.ExponentialBase, cap: cfg.MaxDelay, jitter: cfg.JitterMax}
}

// ceiling is the capped delay before jitter for a 1-indexed attempt.
func (b backoff) ceiling(attempt int) float64 {
	d := float64(b.base)
	if b.factor > 0 {
		d *= math.Pow(b.factor, float64(attempt-1))
	}
	return math.Min(d, float64(b.cap))
}

// Delay computes the wait before retry number attempt (1-indexed) of a
// failure with the given code: min(formula, cap) + rnd()*jitterMax, rounded
// to the millisecond. rnd must return values in [0, 1); nil means no jitter.
func Delay(code apierr.Code, attempt int, cfg Config, rnd func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	b := backoffFor(code, cfg.normalized())

	d := b.ceiling(attempt)
	if b.jitter > 0 && rnd != nil {
		d += rnd() * float64(b.jitter)
	}
	return time.Duration(d).Round(time.Millisecond)
}

// DelayBounds returns the inclusive range Delay can produce for attempt.
func DelayBounds(code apierr.Code, attempt int, cfg Config) (lo, hi time.Duration) {
	if attempt < 1 {
		attempt = 1
	}
	b := backoffFor(code, cfg.normalized())
	ceil := b.ceiling(attempt)
	return time.Duration(ceil).Round(time.Millisecond), time.Duration(ceil + float64(b.jitter)).Round(time.Millisecond)
}
