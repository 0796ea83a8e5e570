package nonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
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

func TestGuard_ReplayRejectedUntilPurged(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	g := NewGuard(5*time.Minute, WithClock(clk.Now))

	require.True(t, g.CheckAndAdd("n-1"))
	require.False(t, g.CheckAndAdd("n-1"), "second use is a replay")
	require.True(t, g.Seen("n-1"))

	// exactly at TTL the entry is still held
	clk.Advance(5 * time.Minute)
	require.Equal(t, 0, g.Sweep())
	require.False(t, g.CheckAndAdd("n-1"))

	clk.Advance(time.Millisecond)
	require.Equal(t, 1, g.Sweep())
	require.False(t, g.Seen("n-1"))
	require.True(t, g.CheckAndAdd("n-1"), "purged nonce is accepted as new")
}

func TestGuard_SweepKeepsFreshEntries(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.UnixMilli(0)}
	g := NewGuard(time.Minute, WithClock(clk.Now))

	require.True(t, g.CheckAndAdd("old"))
	clk.Advance(45 * time.Second)
	require.True(t, g.CheckAndAdd("new"))
	clk.Advance(30 * time.Second)

	require.Equal(t, 1, g.Sweep())
	require.False(t, g.Seen("old"))
	require.True(t, g.Seen("new"))
	require.Equal(t, 1, g.Len())
}

func TestGuard_ConcurrentCheckAndAddSingleWinner(t *testing.T) {
	t.Parallel()

	g := NewGuard(time.Minute)
	const workers = 64

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.CheckAndAdd("contended") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestGuard_RunSweepsAndStops(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.UnixMilli(0)}
	g := NewGuard(time.Second,
		WithClock(clk.Now),
		WithSweepInterval(5*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.True(t, g.CheckAndAdd("x"))
	clk.Advance(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewGuard_DefaultTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.UnixMilli(0)}
	g := NewGuard(0, WithClock(clk.Now))
	require.True(t, g.CheckAndAdd("a"))
	clk.Advance(DefaultTTL)
	require.Equal(t, 0, g.Sweep())
	clk.Advance(time.Millisecond)
	require.Equal(t, 1, g.Sweep())
}
