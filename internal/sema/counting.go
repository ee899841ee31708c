// Package sema provides a counting semaphore with blocking, non-blocking,
// cancellable and timed waits.
package sema

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/semaphore"
)

// Counting is a counting semaphore whose value never exceeds the limit it
// was created with. Post raises the value by one, the Wait family lowers it
// by one, blocking while it is zero.
type Counting struct {
	sem   *semaphore.Weighted
	clock clock.Clock
	limit int64
	value atomic.Int64
}

// NewCounting creates a semaphore with initial value n, which is also its
// limit. A nil clock means the wall clock.
func NewCounting(n int64, clk clock.Clock) (*Counting, error) {
	if n <= 0 {
		return nil, errors.NotValidf("semaphore limit %d", n)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	c := &Counting{
		sem:   semaphore.NewWeighted(n),
		clock: clk,
		limit: n,
	}
	c.value.Store(n)
	return c, nil
}

// Limit returns the largest value the semaphore can hold.
func (c *Counting) Limit() int64 { return c.limit }

// Value returns the current value. It is exact only while no Post or Wait
// is in flight.
func (c *Counting) Value() int64 { return c.value.Load() }

// Post increments the value and wakes one waiter. It panics if the value
// would exceed the limit.
func (c *Counting) Post() {
	c.value.Add(1)
	c.sem.Release(1)
}

// Wait blocks until the value is positive, then decrements it.
func (c *Counting) Wait() {
	// Acquire with a background context only fails on cancellation.
	_ = c.WaitContext(context.Background())
}

// WaitContext is Wait with cancellation. On error the value is unchanged.
func (c *Counting) WaitContext(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return errors.Trace(err)
	}
	c.value.Add(-1)
	return nil
}

// TryWait decrements the value if it is positive and reports whether it did.
func (c *Counting) TryWait() bool {
	if !c.sem.TryAcquire(1) {
		return false
	}
	c.value.Add(-1)
	return true
}

// TryWaitFor waits at most d, measured on the semaphore's clock, for the
// value to become positive. A non-positive d behaves like TryWait.
func (c *Counting) TryWaitFor(d time.Duration) bool {
	if c.TryWait() {
		return true
	}
	if d <= 0 {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timer := c.clock.AfterFunc(d, cancel)
	defer timer.Stop()
	return c.WaitContext(ctx) == nil
}
