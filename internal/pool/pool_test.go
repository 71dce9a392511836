package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}
	for want := 0; want < 3; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Errorf("Pop() = %d, %v, want %d, true", got, ok, want)
		}
	}

	rest := q.Close()
	if len(rest) != 2 || rest[0] != 3 || rest[1] != 4 {
		t.Errorf("Close() = %v, want [3 4]", rest)
	}
	if q.Close() != nil {
		t.Error("second Close() should return nil")
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on a closed queue should report false")
	}
	if err := q.Push(9); !errors.Is(err, ErrClosed) {
		t.Errorf("Push() after Close error = %v, want ErrClosed", err)
	}
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q := NewQueue[string]()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	time.Sleep(20 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pop() callers were not woken by Close()")
	}
}

func TestPoolProcessesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	p := New(1, func(v int) {
		mu.Lock()
		got = append(got, v)
		if len(got) == 10 {
			close(done)
		}
		mu.Unlock()
	}, nil)
	p.Start()
	for i := 0; i < 10; i++ {
		if err := p.Submit(i); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("items were not processed")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("processing order = %v, want ascending", got)
		}
	}
}

func TestPoolStopWithQueuedItems(t *testing.T) {
	const queued = 25

	var mu sync.Mutex
	seen := make(map[int]string)
	record := func(v int, how string) {
		mu.Lock()
		defer mu.Unlock()
		if prev, dup := seen[v]; dup {
			t.Errorf("item %d %s after already %s", v, how, prev)
		}
		seen[v] = how
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := New(1, func(v int) {
		once.Do(func() { close(started) })
		<-release
		record(v, "processed")
	}, func(v int) {
		record(v, "abandoned")
	})
	p.Start()

	for i := 0; i <= queued; i++ {
		if err := p.Submit(i); err != nil {
			t.Fatal(err)
		}
	}
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop(context.Background()) }()

	// Stop must not return while the worker is busy.
	select {
	case err := <-stopped:
		t.Fatalf("Stop() returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(seen) != queued+1 {
		t.Fatalf("accounted for %d items, want %d", len(seen), queued+1)
	}
	processed := 0
	for _, how := range seen {
		if how == "processed" {
			processed++
		}
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", p.Pending())
	}
	if err := p.Submit(99); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Stop error = %v, want ErrClosed", err)
	}
	if !p.Exiting() {
		t.Error("Exiting() = false after Stop")
	}
}

func TestPoolStopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	p := New(1, func(int) {
		close(started)
		<-release
	}, nil)
	p.Start()
	if err := p.Submit(1); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want DeadlineExceeded", err)
	}
}

func TestPoolSurvivesPanic(t *testing.T) {
	done := make(chan int, 2)
	p := New(1, func(v int) {
		if v == 0 {
			panic("boom")
		}
		done <- v
	}, nil)
	p.Start()
	defer p.Stop(context.Background())

	_ = p.Submit(0)
	_ = p.Submit(1)
	select {
	case v := <-done:
		if v != 1 {
			t.Errorf("handled %d, want 1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking handler")
	}
}

func TestNewDefaultSize(t *testing.T) {
	p := New(0, func(int) {}, nil)
	if p.Size() != DefaultSize {
		t.Errorf("Size() = %d, want %d", p.Size(), DefaultSize)
	}
}
