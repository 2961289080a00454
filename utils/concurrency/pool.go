// Package concurrency implements a channel based pool of resources for concurrent tasks.
package concurrency

import (
	"sync"
)

// Task is a function borrowing a resource of the pool for its duration.
type Task[T any] func(resource T) (err error)

// Pool runs tasks concurrently, at most one per resource, each task
// borrowing a resource (e.g. a scratch buffer) while it runs.
type Pool[T any] struct {
	wg        sync.WaitGroup
	resources chan T
	once      sync.Once
	err       error
	failed    chan struct{}
}

// NewPool instantiates a new [Pool] over resources.
func NewPool[T any](resources []T) *Pool[T] {
	ch := make(chan T, len(resources))
	for i := range resources {
		ch <- resources[i]
	}
	return &Pool[T]{
		resources: ch,
		failed:    make(chan struct{}),
	}
}

// Go runs f on the next available resource.
// Once a task has failed, tasks not yet started are skipped.
func (p *Pool[T]) Go(f Task[T]) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		var r T
		select {
		case <-p.failed:
			return
		case r = <-p.resources:
		}
		defer func() { p.resources <- r }()

		select {
		case <-p.failed:
			return
		default:
		}

		if err := f(r); err != nil {
			p.once.Do(func() {
				p.err = err
				close(p.failed)
			})
		}
	}()
}

// Wait waits until all tasks have returned and returns the first
// encountered error, if any.
func (p *Pool[T]) Wait() (err error) {
	p.wg.Wait()
	return p.err
}

// Map applies f to every element of in on at most workers goroutines and
// returns the results in the order of in.
func Map[S, D any](workers int, in []S, f func(s S) (d D, err error)) (out []D, err error) {

	if workers < 1 {
		workers = 1
	}

	ids := make([]int, workers)
	for i := range ids {
		ids[i] = i
	}

	pool := NewPool(ids)

	out = make([]D, len(in))

	for i := range in {
		pool.Go(func(int) (err error) {
			out[i], err = f(in[i])
			return
		})
	}

	if err = pool.Wait(); err != nil {
		return nil, err
	}

	return
}
