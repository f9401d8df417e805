// Package workerpool provides a small fixed-size goroutine pool used to fan
// out embarrassingly-parallel, side-effect-free work.
//
// The branching core runs as a single-threaded cooperative callback inside
// the host solver: it never parallelizes probing, propagation, or LP
// solves. The one place where concurrency is safe and useful is phase 0
// of strong branching, which computes pure scores over the current LP
// candidates from data already materialized by the host, with no probing
// session, no bound changes, and no shared mutable state. Pool exists to
// fan that scoring step out across candidates.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// ErrPoolClosed is returned by Submit after Close has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a fixed-size worker pool. Unlike a dynamically scaled pool, Pool
// never grows or shrinks: the branching core's scoring fan-out is bounded
// by the candidate count of a single call and does not benefit from
// runtime scaling heuristics.
type Pool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	closeCh  chan struct{}
	closeOne sync.Once
}

// New creates a pool with the given number of workers. A non-positive
// size defaults to runtime.NumCPU().
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p := &Pool{
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task()
		case <-p.closeCh:
			return
		}
	}
}

// Submit enqueues a task. It blocks until a worker slot is free, the
// context is cancelled, or the pool is closed.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.closeCh:
		return ErrPoolClosed
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return ErrPoolClosed
	}
}

// Close stops accepting new tasks and waits for in-flight tasks to drain.
func (p *Pool) Close() {
	p.closeOne.Do(func() {
		close(p.closeCh)
		p.wg.Wait()
	})
}

// MapScores runs fn(items[i]) for every index concurrently across the pool
// and returns the results in input order. A single erroring fn does not
// cancel the others; MapScores returns the first error seen
// (if any) after every item has been processed. This mirrors Phase 0's
// requirement that every candidate gets a score even if the host's
// pseudocost query misbehaves for one of them.
func MapScores[T, R any](ctx context.Context, p *Pool, items []T, fn func(T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(len(items))

	for i, item := range items {
		i, item := i, item
		submitErr := p.Submit(ctx, func() {
			defer wg.Done()
			r, err := fn(item)
			results[i] = r
			errs[i] = err
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
