package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSerialExecutor_RunsInPostOrder(t *testing.T) {
	executor := NewSerialExecutor()
	defer executor.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		executor.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	if err := executor.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("do: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 50 {
		t.Fatalf("expected 50 items, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("expected item %d at position %d, got %d", i, i, got)
		}
	}
}

func TestSerialExecutor_CloseDrainsAndRejects(t *testing.T) {
	executor := NewSerialExecutor()
	ran := make(chan struct{}, 1)
	executor.Post(func() { ran <- struct{}{} })
	executor.Close()

	select {
	case <-ran:
	default:
		t.Fatalf("expected queued work to run before close returned")
	}
	if executor.Post(func() {}) {
		t.Fatalf("expected post after close to be rejected")
	}
	if err := executor.Do(context.Background(), func() {}); err == nil {
		t.Fatalf("expected do after close to fail")
	}
}

func TestSerialExecutor_RecoversFromPanics(t *testing.T) {
	executor := NewSerialExecutor()
	defer executor.Close()

	recovered := make(chan any, 1)
	executor.OnPanic(func(value any) { recovered <- value })
	executor.Post(func() { panic("boom") })

	select {
	case value := <-recovered:
		if value != "boom" {
			t.Fatalf("unexpected panic value %v", value)
		}
	case <-time.After(testWait):
		t.Fatalf("expected panic hook to run")
	}
	if err := executor.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("expected executor to keep running, got %v", err)
	}
}

func TestSerialExecutor_DoHonorsContext(t *testing.T) {
	executor := NewSerialExecutor()
	defer executor.Close()

	release := make(chan struct{})
	executor.Post(func() { <-release })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := executor.Do(ctx, func() {}); err == nil {
		t.Fatalf("expected context error")
	}
	close(release)
}
