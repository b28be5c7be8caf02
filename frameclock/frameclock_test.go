package frameclock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartStopTransitions(t *testing.T) {
	c := New(WithInterval(5 * time.Millisecond))
	defer c.Close()

	if c.Running() {
		t.Fatal("clock running with zero registrants")
	}

	if err := c.Register("a", func(time.Time) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !c.Running() {
		t.Fatal("clock not running after first registration")
	}

	if err := c.Register("b", func(time.Time) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register("c", func(time.Time) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c.Unregister("a")
	c.Unregister("b")
	if !c.Running() {
		t.Fatal("clock stopped while a registrant remains")
	}

	c.Unregister("c")
	if c.Running() {
		t.Fatal("clock still running after last unregistration")
	}
}

func TestDuplicateName(t *testing.T) {
	c := New(WithInterval(5 * time.Millisecond))
	defer c.Close()

	if err := c.Register("x", func(time.Time) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := c.Register("x", func(time.Time) {}); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}

func TestCallbacksFire(t *testing.T) {
	c := New(WithInterval(2 * time.Millisecond))
	defer c.Close()

	var ticks atomic.Int64
	if err := c.Register("count", func(time.Time) { ticks.Add(1) }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	deadline := time.After(500 * time.Millisecond)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("callback fired %d times, want >= 3", ticks.Load())
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestWaitFrames(t *testing.T) {
	c := New(WithInterval(2 * time.Millisecond))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := c.WaitFrames(ctx, 2); err != nil {
		t.Fatalf("WaitFrames: %v", err)
	}
	if c.Running() {
		t.Fatal("clock still running after WaitFrames released its callback")
	}
}

func TestWaitFramesCancelled(t *testing.T) {
	c := New(WithInterval(time.Hour)) // never ticks
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.WaitFrames(ctx, 1); err != context.Canceled {
		t.Fatalf("WaitFrames: got %v, want context.Canceled", err)
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	c := New(WithInterval(time.Millisecond))
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('a' + n))
			for j := 0; j < 50; j++ {
				if err := c.Register(name, func(time.Time) {}); err != nil {
					t.Errorf("Register %s: %v", name, err)
					return
				}
				c.Unregister(name)
			}
		}(i)
	}
	wg.Wait()

	if c.Running() {
		t.Fatal("clock running after all registrants left")
	}
}

func TestCloseReleasesWaitFrames(t *testing.T) {
	c := New(WithInterval(time.Hour)) // never ticks

	errc := make(chan error, 1)
	go func() {
		errc <- c.WaitFrames(context.Background(), 1)
	}()

	time.Sleep(10 * time.Millisecond)
	c.Close()

	select {
	case err := <-errc:
		if err != ErrStopped {
			t.Fatalf("WaitFrames after Close: got %v, want ErrStopped", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitFrames still blocked after Close")
	}
}

func TestCloseRejectsRegistration(t *testing.T) {
	c := New()
	c.Close()
	if err := c.Register("late", func(time.Time) {}); err != ErrStopped {
		t.Fatalf("Register after Close: got %v, want ErrStopped", err)
	}
}
