package resilience

import (
	"time"
)

// PolicyFrom converts config values to a Policy. Negative retries keep the
// default; zero means a single attempt.
func PolicyFrom(retries, baseDelayMs, maxDelayMs int) Policy {
	p := DefaultPolicy()
	if retries >= 0 {
		p.Retries = retries
	}
	if baseDelayMs > 0 {
		p.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		p.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	return p
}

// BreakerConfigFrom converts config values to a BreakerConfig.
func BreakerConfigFrom(failureThreshold, resetTimeoutSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
