// Package nonce implements an in-process replay guard for request and
// envelope nonces.
//
// A nonce moves Unseen -> Consumed on first acceptance and Consumed -> Purged
// once its TTL has elapsed and a sweep runs. Replay protection covers a
// single process only; instances do not share state.
package nonce

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for the request path.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Guard is a concurrency-safe set of consumed nonces with bounded lifetime.
type Guard struct {
	mu      sync.Mutex
	entries map[string]int64 // nonce -> consumedAt (unix millis)

	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
	every time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option { return func(g *Guard) { g.now = now } }

// WithSweepInterval sets how often Run purges expired entries.
func WithSweepInterval(d time.Duration) Option { return func(g *Guard) { g.every = d } }

// WithLogger attaches a logger for sweep diagnostics.
func WithLogger(l *zap.Logger) Option { return func(g *Guard) { g.log = l } }

// NewGuard constructs a Guard with the given TTL.
func NewGuard(ttl time.Duration, opts ...Option) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Guard{
		entries: make(map[string]int64),
		ttl:     ttl,
		now:     time.Now,
		log:     zap.NewNop(),
		every:   DefaultSweepInterval,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CheckAndAdd atomically consumes nonce. It returns false if the nonce is
// already consumed and not yet purged.
func (g *Guard) CheckAndAdd(nonce string) bool {
	now := g.now().UnixMilli()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.entries[nonce]; seen {
		return false
	}
	g.entries[nonce] = now
	return true
}

// Seen reports whether nonce is currently consumed.
func (g *Guard) Seen(nonce string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[nonce]
	return ok
}

// Sweep evicts entries whose age exceeds the TTL and returns how many were removed.
func (g *Guard) Sweep() int {
	cutoff := g.now().UnixMilli() - g.ttl.Milliseconds()

	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for n, at := range g.entries {
		if at < cutoff {
			delete(g.entries, n)
			removed++
		}
	}
	return removed
}

// Len returns the number of consumed nonces held.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Run sweeps periodically until ctx is done.
func (g *Guard) Run(ctx context.Context) {
	t := time.NewTicker(g.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := g.Sweep(); n > 0 {
				g.log.Debug("nonce sweep", zap.Int("removed", n), zap.Int("remaining", g.Len()))
			}
		}
	}
}
