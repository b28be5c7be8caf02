package stability

import (
	"sync"
	"time"
)

// FakeSource is a DisruptionSource for tests: it injects synthetic
// disruption, paint, and font events at controlled times instead of
// observing a real platform.
type FakeSource struct {
	// ReportFontsAtStart makes the source declare the font capability
	// absent by satisfying it immediately.
	ReportFontsAtStart bool

	mu   sync.Mutex
	sink Sink
}

// Start implements DisruptionSource.
func (f *FakeSource) Start(sink Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
	if f.ReportFontsAtStart {
		sink.FontsReady()
	}
	return nil
}

// Stop implements DisruptionSource.
func (f *FakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = nil
}

// Disrupt injects a disruptive layout shift at time at.
func (f *FakeSource) Disrupt(at time.Time) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.Disruption(at)
	}
}

// Paint injects a first-paint observation.
func (f *FakeSource) Paint() {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.FirstPaint()
	}
}

// LoadFonts injects a fonts-ready observation.
func (f *FakeSource) LoadFonts() {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.FontsReady()
	}
}
