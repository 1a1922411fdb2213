package domain

import (
	"math"
	"sync"
	"testing"

	marketdomain "github.com/dlemos/perparb/business/market/domain"
)

var btcusdt = marketdomain.Instrument{Base: "BTC", Quote: "USDT"}

func TestHistoryFIFOEviction(t *testing.T) {
	tracker := NewHistoryTracker(50)

	// Insert d1..d51; the window must hold exactly d2..d51.
	for i := 1; i <= 51; i++ {
		tracker.Record(btcusdt, float64(i))
	}

	window := tracker.Window(btcusdt)
	if len(window) != 50 {
		t.Fatalf("window length = %d, want 50", len(window))
	}
	if window[0] != 2 {
		t.Errorf("oldest entry = %v, want 2 (d1 evicted)", window[0])
	}
	if window[49] != 51 {
		t.Errorf("newest entry = %v, want 51", window[49])
	}
}

func TestVolatilityPlaceholderBelowSixSamples(t *testing.T) {
	tracker := NewHistoryTracker(50)

	for i := 0; i < 5; i++ {
		tracker.Record(btcusdt, 0.0005)
		if got := tracker.Volatility(btcusdt); got != 0.0001 {
			t.Fatalf("volatility with %d samples = %v, want placeholder 0.0001", i+1, got)
		}
	}
}

func TestVolatilityConstantWindowNearZero(t *testing.T) {
	tracker := NewHistoryTracker(50)

	for i := 0; i < 10; i++ {
		tracker.Record(btcusdt, 0.0005)
	}

	if got := tracker.Volatility(btcusdt); got != 0 {
		t.Errorf("volatility of constant window = %v, want 0", got)
	}
}

func TestVolatilitySampleStdDev(t *testing.T) {
	tracker := NewHistoryTracker(50)

	// Samples 1..6: mean 3.5, sample variance 3.5.
	for i := 1; i <= 6; i++ {
		tracker.Record(btcusdt, float64(i))
	}

	got := tracker.Volatility(btcusdt)
	want := math.Sqrt(3.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("volatility = %v, want %v", got, want)
	}
}

func TestHistoryConcurrentRecord(t *testing.T) {
	tracker := NewHistoryTracker(50)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			tracker.Record(btcusdt, float64(v))
			tracker.Volatility(btcusdt)
		}(i)
	}
	wg.Wait()

	if got := tracker.Len(btcusdt); got != 50 {
		t.Errorf("window length after 100 concurrent records = %d, want 50", got)
	}
}
