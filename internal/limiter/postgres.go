package limiter

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed limiter over the attempt_limiter table.
type PG struct {
	pool     pgxQuerier
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool *pgxpool.Pool, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return NewPGWithQuerier(pool, window, maxFails, blockFor)
}

// NewPGWithQuerier constructs a limiter over any pgx querier.
func NewPGWithQuerier(q pgxQuerier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{pool: q, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Allow reports whether an attempt is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM attempt_limiter WHERE subject=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, subject, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if now := l.now(); blockedUntil.After(now) {
			return false, blockedUntil.Sub(now), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for (subject, ip).
func (l *PG) Success(ctx context.Context, subject string, ipHash []byte) error {
	const q = `
INSERT INTO attempt_limiter (subject, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',now())
ON CONFLICT (subject, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := l.pool.Exec(ctx, q, subject, ipHash)
	return err
}

// Failure records a failed attempt and blocks the subject once maxFails is
// reached inside the window.
func (l *PG) Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO attempt_limiter (subject, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',now())
ON CONFLICT (subject, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - attempt_limiter.updated_at > $3::interval THEN 1 ELSE attempt_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, subject, ipHash, l.window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}
	blockUntil := l.now().Add(l.blockFor)
	const upd = `UPDATE attempt_limiter SET blocked_until=$3 WHERE subject=$1 AND ip_hash=$2`
	if _, err := l.pool.Exec(ctx, upd, subject, ipHash, blockUntil); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
