// Package retry provides the exponential backoff strategy used for
// message-bus connection attempts.
package retry

import (
	"math"
	"time"
)

// Strategy configures exponential backoff for broker connection
// attempts: delay = min(BaseDelay * ExponentialBase^attempt, MaxDelay).
//
// Example with defaults (1s base, 2.0 exponential, 30s max):
//
//	Attempt 1: 2s
//	Attempt 2: 4s
//	Attempt 3: 8s
//	Attempt 4: 16s
//	Attempt 5: 30s (capped)
type Strategy struct {
	MaxAttempts     int           // Maximum connection attempts before giving up (0 = unlimited)
	BaseDelay       time.Duration // Initial backoff delay
	MaxDelay        time.Duration // Backoff delay cap
	ExponentialBase float64       // Backoff multiplier (e.g. 2.0 for doubling)
}

// DefaultStrategy returns the production default: unlimited attempts,
// 1s→30s exponential backoff. The broker owning reconnects means the
// pipeline should keep trying until the supervisor kills it.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     0,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Delay returns the backoff delay for a given attempt number
// (1-based). Attempt numbers at or below zero yield BaseDelay.
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return s.BaseDelay
	}
	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// Exhausted reports whether another attempt is disallowed.
// Never true when MaxAttempts is zero (unlimited).
func (s Strategy) Exhausted(attempt int) bool {
	return s.MaxAttempts > 0 && attempt >= s.MaxAttempts
}
