package limiter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)} }

// compile-time checks
var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*PG)(nil)
	_ Limiter = (*Redis)(nil)
)

func TestMemory_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	m := NewMemory(DefaultPolicy, clk.Now)

	for i := 1; i <= 5; i++ {
		ok, _, err := m.Allow(ctx, "root")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i)
		n, err := m.Failure(ctx, "root")
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	ok, retry, err := m.Allow(ctx, "root")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 30*time.Minute, retry)

	clk.Advance(29 * time.Minute)
	ok, retry, _ = m.Allow(ctx, "root")
	require.False(t, ok)
	require.Equal(t, time.Minute, retry)

	clk.Advance(time.Minute)
	ok, _, _ = m.Allow(ctx, "root")
	require.True(t, ok)
	require.Equal(t, 0, m.Count("root"))
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultPolicy, newFakeClock().Now)
	for i := 0; i < 5; i++ {
		_, _ = m.Failure(ctx, "a")
	}
	ok, _, _ := m.Allow(ctx, "a")
	require.False(t, ok)
	ok, _, _ = m.Allow(ctx, "b")
	require.True(t, ok)
}

func TestMemory_SuccessResets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultPolicy, newFakeClock().Now)
	for i := 0; i < 4; i++ {
		_, _ = m.Failure(ctx, "a")
	}
	require.NoError(t, m.Success(ctx, "a"))
	require.Equal(t, 0, m.Count("a"))
	n, _ := m.Failure(ctx, "a")
	require.Equal(t, 1, n)
}

// The lockout is measured from the most recent failure.
func TestMemory_LockoutFromLastFailure(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	m := NewMemory(DefaultPolicy, clk.Now)
	for i := 0; i < 5; i++ {
		_, _ = m.Failure(ctx, "a")
		clk.Advance(10 * time.Minute)
	}
	// last failure was 10 minutes ago
	ok, retry, _ := m.Allow(ctx, "a")
	require.False(t, ok)
	require.Equal(t, 20*time.Minute, retry)
}

func TestMemory_ConcurrentFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultPolicy, newFakeClock().Now)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Failure(ctx, "a")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, m.Count("a"))
}

func TestMemory_StaleFailuresDoNotAccumulate(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	m := NewMemory(DefaultPolicy, clk.Now)
	for i := 0; i < 4; i++ {
		_, _ = m.Failure(ctx, "a")
	}

	clk.Advance(31 * time.Minute)
	ok, _, err := m.Allow(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, m.Count("a"))

	n, err := m.Failure(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	ok, _, _ = m.Allow(ctx, "a")
	require.True(t, ok)
}

func TestMemory_FailureAfterLongPauseRestartsCount(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	m := NewMemory(DefaultPolicy, clk.Now)
	for i := 0; i < 4; i++ {
		_, _ = m.Failure(ctx, "a")
	}
	clk.Advance(31 * time.Minute)

	n, err := m.Failure(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMemory_SweepsStaleKeys(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	m := NewMemory(DefaultPolicy, clk.Now)
	for i := 0; i < 1000; i++ {
		_, _ = m.Failure(ctx, fmt.Sprintf("user-%d", i))
	}
	require.Equal(t, 1000, m.Len())

	clk.Advance(31 * time.Minute)
	_, _ = m.Failure(ctx, "fresh")
	require.Equal(t, 1, m.Len())
	require.Equal(t, 1, m.Count("fresh"))
}
