package retry

// Exports for testing.

// Normalized exposes Config.normalized.
func (c Config) Normalized() Config {
	return c.normalized()
}

// SleepWithContext exposes the default backoff wait.
var SleepWithContext = sleepWithContext
