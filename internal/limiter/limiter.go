// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"time"
)

// Limiter controls login attempts and temporary lockouts per key (username).
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and, if not, the remaining cooldown.
	// An expired lockout resets the counter.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	// Failure records a failed attempt and returns the current failure count.
	Failure(ctx context.Context, key string) (int, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, key string) error
}

// Policy configures lockout.
type Policy struct {
	MaxAttempts int
	// Window is the tracking period of the policy. It is informational:
	// only the lockout measured from the most recent failure is enforced.
	Window  time.Duration
	Lockout time.Duration
}

// DefaultPolicy is 5 attempts with a 30 minute lockout.
var DefaultPolicy = Policy{MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 30 * time.Minute}

// decide applies the policy to a stored counter. reset reports that the most
// recent failure is at least Lockout old and the counter must be cleared,
// whatever its value.
func (p Policy) decide(count int, lastFailure, now time.Time) (allowed bool, retryAfter time.Duration, reset bool) {
	elapsed := now.Sub(lastFailure)
	if p.stale(elapsed) {
		return true, 0, true
	}
	if count < p.MaxAttempts {
		return true, 0, false
	}
	return false, p.Lockout - elapsed, false
}

func (p Policy) stale(sinceLastFailure time.Duration) bool {
	return sinceLastFailure >= p.Lockout
}
