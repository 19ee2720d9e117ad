package reactor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPriorityOrderingSingleWorker(t *testing.T) {
	r := New(1)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := SpawnWithPriority(ctx, r, New(0, 0), func(context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	var mu sync.Mutex
	var order []string

	slow := SpawnWithPriority(ctx, r, New(0, 100), func(context.Context) (int, error) {
		mu.Lock()
		order = append(order, "slow")
		mu.Unlock()
		return 0, nil
	})
	// Give the scheduler a chance to enqueue slow before fast is spawned.
	time.Sleep(10 * time.Millisecond)
	fast := SpawnWithPriority(ctx, r, New(0, 5), func(context.Context) (int, error) {
		mu.Lock()
		order = append(order, "fast")
		mu.Unlock()
		return 0, nil
	})

	close(release)
	if _, err := blocker.Await(ctx); err != nil {
		t.Fatalf("blocker: %v", err)
	}
	if _, err := slow.Await(ctx); err != nil {
		t.Fatalf("slow: %v", err)
	}
	if _, err := fast.Await(ctx); err != nil {
		t.Fatalf("fast: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "fast" || order[1] != "slow" {
		t.Fatalf("order = %v, want [fast slow]", order)
	}
}

func TestFIFOTiebreak(t *testing.T) {
	r := New(1)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := SpawnWithPriority(ctx, r, New(0, 0), func(context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	var mu sync.Mutex
	var order []int
	var futures []*Future[int]
	for i := 0; i < 3; i++ {
		i := i
		futures = append(futures, SpawnWithPriority(ctx, r, New(0, 50), func(context.Context) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	if _, err := blocker.Await(ctx); err != nil {
		t.Fatalf("blocker: %v", err)
	}
	for _, f := range futures {
		if _, err := f.Await(ctx); err != nil {
			t.Fatalf("task: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("order = %v, want [0 1 2]", order)
	}
}

func TestPanicIsolatedAsInternalError(t *testing.T) {
	r := New(2)
	ctx := context.Background()

	fut := SpawnWithPriority(ctx, r, New(0, 0), func(context.Context) (int, error) {
		panic("boom")
	})
	_, err := fut.Await(ctx)
	if err == nil {
		t.Fatal("expected an error from a panicking task")
	}

	// The reactor must still admit further work after a panic.
	ok := SpawnWithPriority(ctx, r, New(0, 1), func(context.Context) (int, error) {
		return 7, nil
	})
	v, err := ok.Await(ctx)
	if err != nil || v != 7 {
		t.Fatalf("got (%d, %v), want (7, nil)", v, err)
	}
}

func TestCancelPropagatesToTaskContext(t *testing.T) {
	r := New(1)
	ctx := context.Background()

	entered := make(chan struct{})
	fut := SpawnWithPriority(ctx, r, New(0, 0), func(taskCtx context.Context) (int, error) {
		close(entered)
		<-taskCtx.Done()
		return 0, taskCtx.Err()
	})
	<-entered
	fut.Cancel()

	_, err := fut.Await(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAwaitReleasesSlotForNestedPull(t *testing.T) {
	// With exactly one admission slot, a task that calls Await on an
	// upstream future must not deadlock: its own slot must be given up
	// so the upstream task can run.
	r := New(1)
	ctx := context.Background()

	outer := SpawnWithPriority(ctx, r, New(0, 0), func(taskCtx context.Context) (int, error) {
		upstream := SpawnWithPriority(taskCtx, r, New(0, 0), func(context.Context) (int, error) {
			return 42, nil
		})
		return Await(taskCtx, r, New(0, 0), upstream)
	})

	v, err := outer.Await(ctx)
	if err != nil || v != 42 {
		t.Fatalf("got (%d, %v), want (42, nil)", v, err)
	}
}
