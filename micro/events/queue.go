// Package events provides the deferred-execution queue that the rest of the
// asynchronous I/O core runs on: interrupt-context code posts tasks, one
// consumer runs them to completion one at a time. That single-writer
// discipline is what stands in for locking around shared driver state.
package events

import "context"

// Task is a unit of deferred work.
type Task = func()

// DefaultCapacity is used when NewQueue is given a zero capacity.
const DefaultCapacity = 64

// Queue is a fixed-capacity deferred-task queue. Call never blocks, so it is
// safe from interrupt context; submission is presumed to always succeed, and
// overflow is a fatal sizing bug rather than a runtime condition.
type Queue struct {
	tasks chan Task
}

// NewQueue returns a queue holding at most capacity pending tasks
// (DefaultCapacity when zero).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{tasks: make(chan Task, capacity)}
}

// Call enqueues t for execution on the next Poll or Run cycle. It never
// blocks; a full queue halts the system.
func (q *Queue) Call(t Task) {
	select {
	case q.tasks <- t:
	default:
		panic("events: deferred task queue overflow")
	}
}

// Len reports the number of tasks currently pending.
func (q *Queue) Len() int { return len(q.tasks) }

// Poll runs pending tasks in the caller's goroutine until the queue is
// momentarily empty, and returns how many ran. Tasks posted by tasks run in
// the same drain. This is the deterministic entry point for cooperative
// loops and tests.
func (q *Queue) Poll() int {
	ran := 0
	for {
		select {
		case t := <-q.tasks:
			t()
			ran++
		default:
			return ran
		}
	}
}

// Run services the queue until ctx is cancelled. It is the steady-state
// event loop of a host process; embedded-style mains may prefer a Poll loop.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			t()
		}
	}
}
