package overlay

import (
	"sync"
	"testing"
	"time"
)

// recordingSurface counts show/hide calls.
type recordingSurface struct {
	mu    sync.Mutex
	shows int
	hides int
}

func (r *recordingSurface) ShowOverlay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shows++
}

func (r *recordingSurface) HideOverlay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hides++
}

func (r *recordingSurface) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shows, r.hides
}

func newTestCoordinator(fallback time.Duration) (*Coordinator, *recordingSurface, chan Reason) {
	surface := &recordingSurface{}
	dismissed := make(chan Reason, 8)
	c := New(surface,
		WithFallback(fallback),
		WithDismissHook(func(_ uint64, reason Reason) { dismissed <- reason }))
	return c, surface, dismissed
}

func TestAppReadyBeatsFallback(t *testing.T) {
	c, surface, dismissed := newTestCoordinator(500 * time.Millisecond)

	c.Arm(1)
	if c.State() != Armed {
		t.Fatal("not armed after Arm")
	}

	time.Sleep(20 * time.Millisecond)
	c.AppReady(1)

	select {
	case reason := <-dismissed:
		if reason != ReasonAppReady {
			t.Fatalf("reason: got %s, want %s", reason, ReasonAppReady)
		}
	case <-time.After(time.Second):
		t.Fatal("no dismissal")
	}
	if c.State() != Dismissed {
		t.Fatal("not dismissed after APP_READY")
	}

	// The cancelled fallback timer must never produce a second dismissal.
	time.Sleep(600 * time.Millisecond)
	shows, hides := surface.counts()
	if shows != 1 || hides != 1 {
		t.Errorf("surface calls: got %d shows %d hides, want 1/1", shows, hides)
	}
	select {
	case reason := <-dismissed:
		t.Fatalf("extra dismissal: %s", reason)
	default:
	}
}

func TestFallbackFiresWithoutAppReady(t *testing.T) {
	c, _, dismissed := newTestCoordinator(60 * time.Millisecond)

	start := time.Now()
	c.Arm(1)

	select {
	case reason := <-dismissed:
		if reason != ReasonFallback {
			t.Fatalf("reason: got %s, want %s", reason, ReasonFallback)
		}
	case <-time.After(time.Second):
		t.Fatal("fallback never fired")
	}

	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("fallback fired at %v, before its duration", elapsed)
	}
	if c.State() != Dismissed {
		t.Fatal("not dismissed after fallback")
	}
}

func TestRearmCancelsOldTimer(t *testing.T) {
	c, _, dismissed := newTestCoordinator(50 * time.Millisecond)

	c.Arm(1)
	time.Sleep(20 * time.Millisecond)
	c.Arm(2) // rapid second navigation: timer for nav 1 must die

	// Nav 1's original deadline passes; nothing may fire yet.
	time.Sleep(20 * time.Millisecond)
	select {
	case reason := <-dismissed:
		t.Fatalf("stale timer for nav 1 dismissed: %s", reason)
	default:
	}

	// Nav 2's own timer eventually fires once.
	select {
	case reason := <-dismissed:
		if reason != ReasonFallback {
			t.Fatalf("reason: got %s, want %s", reason, ReasonFallback)
		}
	case <-time.After(time.Second):
		t.Fatal("nav 2 fallback never fired")
	}
}

func TestStaleAppReadyIgnored(t *testing.T) {
	c, _, dismissed := newTestCoordinator(time.Hour)

	c.Arm(1)
	c.AppReady(1)
	<-dismissed

	// Re-arm for nav 2 (full reload); a late APP_READY for nav 1 must not
	// dismiss the new overlay.
	c.Arm(2)
	c.AppReady(1)
	if c.State() != Armed {
		t.Fatal("stale APP_READY dismissed a newer navigation")
	}

	c.AppReady(2)
	if c.State() != Dismissed {
		t.Fatal("current APP_READY did not dismiss")
	}
}

func TestAppReadyWhileDismissedIsNoOp(t *testing.T) {
	c, surface, _ := newTestCoordinator(time.Hour)
	c.AppReady(1)
	if _, hides := surface.counts(); hides != 0 {
		t.Fatal("APP_READY in Dismissed state touched the surface")
	}
}

func TestRearmAfterDismissal(t *testing.T) {
	c, surface, dismissed := newTestCoordinator(time.Hour)

	c.Arm(1)
	c.AppReady(1)
	<-dismissed

	c.Arm(2)
	if c.State() != Armed {
		t.Fatal("re-arm after dismissal failed")
	}
	shows, _ := surface.counts()
	if shows != 2 {
		t.Errorf("shows: got %d, want 2", shows)
	}
}
