// Package gate provides a capacity-1 dispatch gate.
//
// The gate is the backpressure mechanism for outbound classification calls:
// while one call is outstanding every further attempt is dropped, never
// queued. A slow or stalled endpoint therefore costs nothing but dropped
// ticks, and results can only arrive in submission order.
package gate

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outcome is the synchronous result of a dispatch attempt.
type Outcome int

const (
	// Accepted means the call was started.
	Accepted Outcome = iota
	// Dropped means a prior call was still outstanding. This is expected
	// backpressure, not a failure.
	Dropped
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == Dropped {
		return "dropped"
	}
	return "accepted"
}

// Call is the outbound work performed on an accepted dispatch.
type Call func(ctx context.Context)

// Stats contains dispatch counters.
type Stats struct {
	Accepted  uint64 `json:"accepted"`
	Dropped   uint64 `json:"dropped"`
	Completed uint64 `json:"completed"`
	InFlight  bool   `json:"in_flight"`
}

// Gate admits at most one outstanding call.
type Gate struct {
	mu   sync.Mutex
	busy atomic.Bool
	done chan struct{} // closed when the outstanding call completes

	accepted  atomic.Uint64
	dropped   atomic.Uint64
	completed atomic.Uint64
}

// New creates an idle gate.
func New() *Gate {
	return &Gate{}
}

// TryDispatch starts call in its own goroutine unless a previous call is
// still outstanding, in which case it returns Dropped without doing any I/O.
// The gate is released when call returns, whatever its result.
func (g *Gate) TryDispatch(ctx context.Context, call Call) Outcome {
	g.mu.Lock()
	if !g.busy.CompareAndSwap(false, true) {
		g.mu.Unlock()
		g.dropped.Add(1)
		return Dropped
	}
	done := make(chan struct{})
	g.done = done
	g.mu.Unlock()
	g.accepted.Add(1)

	go func() {
		defer g.release(done)
		call(ctx)
	}()

	return Accepted
}

// Drop records a tick that was rejected before reaching TryDispatch.
func (g *Gate) Drop() {
	g.dropped.Add(1)
}

// Busy reports whether a call is outstanding. O(1), safe from any goroutine.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Wait blocks until no call is outstanding or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.busy.Load() {
		g.mu.Unlock()
		return nil
	}
	done := g.done
	g.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Accepted:  g.accepted.Load(),
		Dropped:   g.dropped.Load(),
		Completed: g.completed.Load(),
		InFlight:  g.busy.Load(),
	}
}

func (g *Gate) release(done chan struct{}) {
	g.mu.Lock()
	g.completed.Add(1)
	g.busy.Store(false)
	close(done)
	g.mu.Unlock()
}
