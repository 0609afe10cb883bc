package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningMergesGuard

// ─────────────────────────────────────────────────────────────
// runningMergesGuard — prevents concurrent merges into one destination
// ─────────────────────────────────────────────────────────────

// runningMergesGuard ensures only one merge runs at a time per destination.
// The key is the destination DSN, so a stored job and an ad-hoc merge into
// the same database exclude each other.
type runningMergesGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock attempts to mark dest as busy. Returns true if successful.
// Returns false if a merge into dest is already running.
func (g *runningMergesGuard) TryLock(dest string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[dest]; ok {
		return false // already running
	}
	g.running[dest] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock marks the destination as free. Must be called after TryLock returns true.
func (g *runningMergesGuard) Unlock(dest string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, dest)
	g.wg.Done()
}

// WaitAll blocks until all currently running merges complete or ctx is cancelled.
func (g *runningMergesGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
