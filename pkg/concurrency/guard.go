package concurrency

import (
	"context"
	"errors"
	"sync"
)

var ErrBusy = errors.New("system is busy")

// ConcurrencyGuard lets exactly one task run at a time. Callers that arrive
// while a task is running are turned away with ErrBusy instead of queueing.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// Execute runs task if the guard is idle.
func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext is Execute for tasks that take the caller's context.
// A context that is already done is reported before the guard is taken.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task(ctx)
}

// IsBusy reports whether a task currently holds the guard.
func (g *ConcurrencyGuard) IsBusy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBusy
}

func (g *ConcurrencyGuard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	return true
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}
