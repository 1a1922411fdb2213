package domain

import (
	"math"
	"sync"

	marketdomain "github.com/dlemos/perparb/business/market/domain"
)

const (
	// DefaultHistoryWindow bounds each instrument's differential window.
	DefaultHistoryWindow = 50

	// volatilityMinSamples is the window size below which the placeholder
	// is returned instead of a real estimate.
	volatilityMinSamples = 6

	// volatilityPlaceholder is small but never zero; ranking formulas
	// divide by volatility.
	volatilityPlaceholder = 0.0001
)

// HistoryTracker keeps a bounded FIFO window of rate differentials per
// instrument for the process lifetime. Scan workers append concurrently.
type HistoryTracker struct {
	mu       sync.Mutex
	capacity int
	windows  map[marketdomain.Instrument][]float64
}

// NewHistoryTracker creates a tracker with the given window capacity.
// Non-positive capacities use the default.
func NewHistoryTracker(capacity int) *HistoryTracker {
	if capacity <= 0 {
		capacity = DefaultHistoryWindow
	}
	return &HistoryTracker{
		capacity: capacity,
		windows:  make(map[marketdomain.Instrument][]float64),
	}
}

// Record appends a differential to the instrument's window, evicting the
// oldest entry when the window is full.
func (t *HistoryTracker) Record(inst marketdomain.Instrument, differential float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := append(t.windows[inst], differential)
	if len(window) > t.capacity {
		window = window[len(window)-t.capacity:]
	}
	t.windows[inst] = window
}

// Volatility returns the sample standard deviation of the instrument's
// window, or the placeholder when fewer than six samples exist.
func (t *HistoryTracker) Volatility(inst marketdomain.Instrument) float64 {
	t.mu.Lock()
	window := t.windows[inst]
	samples := make([]float64, len(window))
	copy(samples, window)
	t.mu.Unlock()

	if len(samples) < volatilityMinSamples {
		return volatilityPlaceholder
	}
	return sampleStdDev(samples)
}

// Len returns the current window size for the instrument.
func (t *HistoryTracker) Len(inst marketdomain.Instrument) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows[inst])
}

// Window returns a copy of the instrument's differential window, oldest
// first.
func (t *HistoryTracker) Window(inst marketdomain.Instrument) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]float64, len(t.windows[inst]))
	copy(out, t.windows[inst])
	return out
}

// sampleStdDev computes the (n-1)-denominator standard deviation.
func sampleStdDev(samples []float64) float64 {
	n := float64(len(samples))
	if n < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / n

	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}
	return math.Sqrt(sq / (n - 1))
}
