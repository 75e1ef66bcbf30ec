// Package retry runs AI calls with classified, category-aware exponential backoff.
//
// Every failure is classified into the apierr taxonomy before any decision is
// made: non-retryable codes return immediately, retryable codes back off with
// a delay chosen by their category (rate limits wait much longer than parse
// errors). The final failure is always a *apierr.ServiceError, except for
// context cancellation (ErrCanceled) and errors that explicitly stop retries.
package retry

import (
	"time"

	"github.com/alnah/go-medscribe/internal/apierr"
)

// Config holds retry parameters for exponential backoff.
//
// The zero Config means "no preference" and is replaced by DefaultConfig, so
// Config{MaxRetries: 0} alone still retries. Use NoRetries, a negative
// MaxRetries, or set any other field to run a single attempt.
// Otherwise invalid values are normalized:
//   - MaxRetries < 0 becomes 0 (single attempt)
//   - BaseDelay <= 0 becomes 1ms
//   - MaxDelay <= 0 becomes BaseDelay
//   - ExponentialBase < 1 becomes 2
//   - JitterMax < 0 becomes 0
type Config struct {
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay" json:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base" json:"exponential_base"`
	JitterMax       time.Duration `yaml:"jitter_max" json:"jitter_max"`
}

// NoRetries runs a single attempt.
var NoRetries = Config{MaxRetries: -1}

// DefaultConfig is used when the caller supplies no Config.
var DefaultConfig = Config{
	MaxRetries:      3,
	BaseDelay:       1 * time.Second,
	MaxDelay:        30 * time.Second,
	ExponentialBase: 2,
	JitterMax:       1 * time.Second,
}

// Recommended per-code configurations.
var (
	rateLimitConfig = Config{
		MaxRetries:      5,
		BaseDelay:       10 * time.Second,
		MaxDelay:        90 * time.Second,
		ExponentialBase: 2,
		JitterMax:       5 * time.Second,
	}
	serviceUnavailableConfig = Config{
		MaxRetries:      4,
		BaseDelay:       5 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
		JitterMax:       2 * time.Second,
	}
	networkConfig = Config{
		MaxRetries:      3,
		BaseDelay:       2 * time.Second,
		MaxDelay:        15 * time.Second,
		ExponentialBase: 2,
		JitterMax:       1 * time.Second,
	}
	quickFixConfig = Config{
		MaxRetries:      2,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		ExponentialBase: 1.5,
		JitterMax:       500 * time.Millisecond,
	}
)

// RecommendedConfig returns the retry configuration suited to a failure code.
// Codes without a specific recommendation get DefaultConfig.
func RecommendedConfig(code apierr.Code) Config {
	switch code {
	case apierr.CodeRateLimitExceeded:
		return rateLimitConfig
	case apierr.CodeServiceUnavailable:
		return serviceUnavailableConfig
	case apierr.CodeNetworkTimeout, apierr.CodeNetworkOffline:
		return networkConfig
	case apierr.CodeParsingFailed, apierr.CodeModelNotFound:
		return quickFixConfig
	}
	return DefaultConfig
}

// IsZero reports whether no field is set.
func (c Config) IsZero() bool {
	return c == Config{}
}

// normalized returns c with defaults applied (see Config documentation).
func (c Config) normalized() Config {
	if c.IsZero() {
		return DefaultConfig
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.BaseDelay
	}
	if c.ExponentialBase < 1 {
		c.ExponentialBase = DefaultConfig.ExponentialBase
	}
	if c.JitterMax < 0 {
		c.JitterMax = 0
	}
	return c
}
