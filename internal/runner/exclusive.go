package runner

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned when a run is requested while another is in flight.
var ErrAlreadyRunning = errors.New("run already in progress")

// Invoker runs one invocation.
type Invoker interface {
	Run(ctx context.Context) (Result, error)
}

// Exclusive serialises runs triggered from several places (cron, HTTP).
// Overlapping requests are rejected rather than queued, so two runs never
// read and write the seen-state at the same time.
type Exclusive struct {
	mu      sync.Mutex
	running bool
	next    Invoker
}

// NewExclusive wraps next.
func NewExclusive(next Invoker) *Exclusive {
	return &Exclusive{next: next}
}

// Run delegates to the wrapped invoker unless a run is already active.
func (e *Exclusive) Run(ctx context.Context) (Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	return e.next.Run(ctx)
}

// Running reports whether a run is in flight.
func (e *Exclusive) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
