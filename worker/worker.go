// Package worker implements the named bounded thread pool from spec.md
// §4.5: submit(task)/wait() with FIFO scheduling and panic capture, in
// fixed and load-adaptive flavors.
//
// Grounded on kloset's errgroup.WithContext usage throughout
// snapshot/backup.go: a fixed number of goroutines draining a task channel,
// joined with Wait(). Generalized from backup.go's two-goroutine ad-hoc
// fan-out into a reusable, named, bounded pool.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work submitted to a Group.
type Task func() error

// Group is a named bounded worker pool. Two modes select how Submit
// behaves when the queue is full:
//   - Fixed: N goroutines and a fixedQueueCap-deep (4096) queue; Submit
//     blocks only once that many tasks are pending.
//   - LoadAdaptive: N goroutines, but the queue capacity is bounded to
//     threshold entries; Submit blocks once it is full, giving the scanner
//     back-pressure against unbounded readahead (spec.md §4.5).
type Group struct {
	name    string
	tasks   chan Task
	errg    *errgroup.Group
	ctx     context.Context
	started bool
}

// fixedQueueCap is the task queue depth for Fixed groups: large enough that
// a builder submitting one task per scanned file never blocks on Submit in
// practice, unlike LoadAdaptive groups which bound depth deliberately.
const fixedQueueCap = 4096

// NewFixed returns a Group with n workers and a fixedQueueCap-deep task
// queue.
func NewFixed(ctx context.Context, name string, n int) *Group {
	return newGroup(ctx, name, n, fixedQueueCap)
}

// NewLoadAdaptive returns a Group with n workers whose queue blocks Submit
// once threshold tasks are pending.
func NewLoadAdaptive(ctx context.Context, name string, n, threshold int) *Group {
	return newGroup(ctx, name, n, threshold)
}

func newGroup(ctx context.Context, name string, n, queueCap int) *Group {
	if n < 1 {
		n = 1
	}
	errg, gctx := errgroup.WithContext(ctx)
	g := &Group{
		name: name,
		tasks: make(chan Task, queueCap),
		errg:  errg,
		ctx:   gctx,
	}
	for i := 0; i < n; i++ {
		errg.Go(g.drain)
	}
	g.started = true
	return g
}

func (g *Group) drain() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: group %q: task panicked: %v", g.name, r)
		}
	}()

	for {
		select {
		case <-g.ctx.Done():
			return g.ctx.Err()
		case t, ok := <-g.tasks:
			if !ok {
				return nil
			}
			if runErr := t(); runErr != nil {
				return runErr
			}
		}
	}
}

// Submit enqueues a task, blocking while the group's queue is full
// (threshold tasks for a load-adaptive group, fixedQueueCap for a fixed
// one). Submit must not be called after Wait has returned.
func (g *Group) Submit(t Task) {
	select {
	case g.tasks <- t:
	case <-g.ctx.Done():
	}
}

// Wait closes the task queue and blocks until every worker has drained it
// and returned, surfacing the first error (including a captured panic).
func (g *Group) Wait() error {
	close(g.tasks)
	return g.errg.Wait()
}
