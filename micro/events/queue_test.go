package events

import (
	"context"
	"testing"
	"time"
)

func TestQueue_PollRunsInOrder(t *testing.T) {
	q := NewQueue(8)

	var order []int
	q.Call(func() { order = append(order, 1) })
	q.Call(func() { order = append(order, 2) })
	q.Call(func() { order = append(order, 3) })

	if n := q.Poll(); n != 3 {
		t.Fatalf("Poll ran %d, want 3", n)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v", order)
	}
}

func TestQueue_TasksPostedByTasksRunInSameDrain(t *testing.T) {
	q := NewQueue(8)

	ran := false
	q.Call(func() {
		q.Call(func() { ran = true })
	})
	if n := q.Poll(); n != 2 {
		t.Fatalf("Poll ran %d, want 2", n)
	}
	if !ran {
		t.Fatal("nested task did not run")
	}
}

func TestQueue_PollEmptyReturnsZero(t *testing.T) {
	q := NewQueue(0)
	if n := q.Poll(); n != 0 {
		t.Fatalf("Poll = %d, want 0", n)
	}
}

func TestQueue_Len(t *testing.T) {
	q := NewQueue(4)
	q.Call(func() {})
	q.Call(func() {})
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	q.Poll()
	if q.Len() != 0 {
		t.Fatalf("Len after drain = %d", q.Len())
	}
}

func TestQueue_OverflowPanics(t *testing.T) {
	q := NewQueue(2)
	q.Call(func() {})
	q.Call(func() {})

	defer func() {
		if recover() == nil {
			t.Fatal("overflowing the queue did not panic")
		}
	}()
	q.Call(func() {})
}

func TestQueue_RunServicesUntilCancelled(t *testing.T) {
	q := NewQueue(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(stopped)
	}()

	done := make(chan struct{})
	q.Call(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
