package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count       int
	lastFailure time.Time
}

// Memory is a process-local limiter. Counters are per instance: several
// replicas each enforce the policy on their own.
type Memory struct {
	mu        sync.Mutex
	policy    Policy
	now       func() time.Time
	entries   map[string]entry
	lastSweep time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(policy Policy, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{policy: policy, now: now, entries: make(map[string]entry), lastSweep: now()}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return true, 0, nil
	}
	allowed, retry, reset := m.policy.decide(e.count, e.lastFailure, m.now())
	if reset {
		delete(m.entries, key)
	}
	return allowed, retry, nil
}

// Failure implements Limiter.
func (m *Memory) Failure(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	e := m.entries[key]
	if m.policy.stale(now.Sub(e.lastFailure)) {
		e = entry{}
	}
	e.count++
	e.lastFailure = now
	m.entries[key] = e
	return e.count, nil
}

// sweep drops counters whose last failure is older than the lockout. It runs
// at most once per lockout period. Callers hold m.mu.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.policy.Lockout {
		return
	}
	for k, e := range m.entries {
		if m.policy.stale(now.Sub(e.lastFailure)) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

// Success implements Limiter.
func (m *Memory) Success(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Count returns the stored failure count for key.
func (m *Memory) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key].count
}
