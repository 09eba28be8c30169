package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of a pgx pool used by PG. Implemented by *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG is a PostgreSQL-backed limiter shared by all instances using the same database.
type PG struct {
	pool   Querier
	policy Policy
	now    func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, policy Policy, now func() time.Time) *PG {
	if now == nil {
		now = time.Now
	}
	return &PG{pool: q, policy: policy, now: now}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	const q = `SELECT fail_count, last_failure_at FROM login_attempts WHERE key=$1`
	var count int
	var last time.Time
	err := l.pool.QueryRow(ctx, q, key).Scan(&count, &last)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}

	allowed, retry, reset := l.policy.decide(count, last, l.now())
	if reset {
		if err := l.Success(ctx, key); err != nil {
			return false, 0, err
		}
	}
	return allowed, retry, nil
}

// Failure records a failed attempt and returns the new count. A counter whose
// last failure is older than the lockout restarts at 1.
func (l *PG) Failure(ctx context.Context, key string) (int, error) {
	const q = `
INSERT INTO login_attempts (key, fail_count, last_failure_at)
VALUES ($1, 1, $2)
ON CONFLICT (key) DO UPDATE
SET fail_count = CASE
        WHEN login_attempts.last_failure_at <= $3 THEN 1
        ELSE login_attempts.fail_count + 1
    END,
    last_failure_at = EXCLUDED.last_failure_at
RETURNING fail_count`
	now := l.now()
	var fails int
	if err := l.pool.QueryRow(ctx, q, key, now, now.Add(-l.policy.Lockout)).Scan(&fails); err != nil {
		return 0, err
	}
	return fails, nil
}

// Success resets counters for key.
func (l *PG) Success(ctx context.Context, key string) error {
	const q = `DELETE FROM login_attempts WHERE key=$1`
	_, err := l.pool.Exec(ctx, q, key)
	return err
}
