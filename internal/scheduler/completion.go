package scheduler

import (
	"context"
	"sync"
)

// Completion is fulfilled exactly once, when the scheduler returns to idle
// after the move it was issued for (or, for WaitUntilReady, when its turn in
// the continuation queue comes).
//
// Completions may be waited on from any goroutine. Waiting from the
// goroutine that drives the scheduler would deadlock; use OnReady there.
type Completion struct {
	once sync.Once
	ch   chan struct{}
}

func newCompletion() *Completion {
	return &Completion{ch: make(chan struct{})}
}

// completed returns a Completion that is already fulfilled.
func completed() *Completion {
	c := newCompletion()
	c.resolve()
	return c
}

func (c *Completion) resolve() {
	c.once.Do(func() { close(c.ch) })
}

// Done is closed once the completion is fulfilled.
func (c *Completion) Done() <-chan struct{} { return c.ch }

// Resolved reports whether the completion has been fulfilled.
func (c *Completion) Resolved() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the completion is fulfilled or ctx ends.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
