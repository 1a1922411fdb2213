package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	marketapp "github.com/dlemos/perparb/business/market/app"
	marketdomain "github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/business/scanner/domain"
)

func fundingFor(venue, rate string) marketdomain.FundingQuote {
	return marketdomain.FundingQuote{
		Venue:      venue,
		Instrument: btc,
		Rate:       decimal.RequireFromString(rate),
	}
}

func TestPredictorClampsInterestCorrection(t *testing.T) {
	// A 1% premium dwarfs the 0.01% interest rate; the correction is
	// clamped at -0.05%, so predicted = 0.01 - 0.0005 = 0.0095.
	gateways := []marketapp.VenueGateway{
		&fakeGateway{venue: "binance", premium: "0.01"},
		&fakeGateway{venue: "bybit", premium: "0.01"},
	}

	predictor := NewPredictor(gateways, 60, testLogger())
	analysis, err := predictor.Analyze(context.Background(),
		fundingFor("binance", "0.0001"), fundingFor("bybit", "0.0006"))
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	want := decimal.RequireFromString("0.0095")
	if !analysis.Long.PredictedRate.Equal(want) {
		t.Errorf("predicted rate = %s, want %s (clamped)", analysis.Long.PredictedRate, want)
	}
}

func TestPredictorSmallPremiumNotClamped(t *testing.T) {
	// Premium 0.0002: correction = 0.0001 - 0.0002 = -0.0001, inside the
	// clamp, so predicted = 0.0001 (the interest rate).
	gateways := []marketapp.VenueGateway{
		&fakeGateway{venue: "binance", premium: "0.0002"},
		&fakeGateway{venue: "bybit", premium: "0.0002"},
	}

	predictor := NewPredictor(gateways, 60, testLogger())
	analysis, err := predictor.Analyze(context.Background(),
		fundingFor("binance", "0.0001"), fundingFor("bybit", "0.0006"))
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	want := decimal.RequireFromString("0.0001")
	if !analysis.Long.PredictedRate.Equal(want) {
		t.Errorf("predicted rate = %s, want %s", analysis.Long.PredictedRate, want)
	}
}

func TestPredictorStabilityBounds(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{venue: "binance", premium: "0.0003"},
		&fakeGateway{venue: "bybit", premium: "0.0001"},
	}

	predictor := NewPredictor(gateways, 60, testLogger())

	long := fundingFor("binance", "0.0001")
	short := fundingFor("bybit", "0.0006")

	for i := 0; i < 10; i++ {
		analysis, err := predictor.Analyze(context.Background(), long, short)
		if err != nil {
			t.Fatalf("Analyze returned error: %v", err)
		}
		if analysis.StabilityScore < 0 || analysis.StabilityScore > 1 {
			t.Fatalf("stability score %v outside [0, 1]", analysis.StabilityScore)
		}
	}

	// A constant premium series is perfectly stable.
	analysis, err := predictor.Analyze(context.Background(), long, short)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if analysis.StabilityScore != 1 {
		t.Errorf("stability of constant premiums = %v, want 1", analysis.StabilityScore)
	}
	if analysis.Trend != domain.TrendStable {
		t.Errorf("trend of constant premiums = %q, want %q", analysis.Trend, domain.TrendStable)
	}
}

func TestPredictorGatewayFailurePropagates(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{venue: "binance", premiumErr: errors.New("down")},
		&fakeGateway{venue: "bybit", premium: "0.0001"},
	}

	predictor := NewPredictor(gateways, 60, testLogger())
	_, err := predictor.Analyze(context.Background(),
		fundingFor("binance", "0.0001"), fundingFor("bybit", "0.0006"))
	if err == nil {
		t.Fatal("expected error when a premium fetch fails")
	}
}

func TestPredictorUnknownVenue(t *testing.T) {
	predictor := NewPredictor(nil, 60, testLogger())
	_, err := predictor.Analyze(context.Background(),
		fundingFor("binance", "0.0001"), fundingFor("bybit", "0.0006"))
	if err == nil {
		t.Fatal("expected error for venue without a gateway")
	}
}

func TestPredictorConfidenceImprovesWithAccuracy(t *testing.T) {
	// Premium 0.0002 predicts 0.0001 every cycle; feeding back a realized
	// rate of exactly 0.0001 keeps the error at zero, so confidence must
	// reach high once predictions have been settled.
	gateways := []marketapp.VenueGateway{
		&fakeGateway{venue: "binance", premium: "0.0002"},
		&fakeGateway{venue: "bybit", premium: "0.0002"},
	}

	predictor := NewPredictor(gateways, 60, testLogger())
	long := fundingFor("binance", "0.0001")
	short := fundingFor("bybit", "0.0001")

	first, err := predictor.Analyze(context.Background(), long, short)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if first.Long.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence before any settled prediction = %q, want %q",
			first.Long.Confidence, domain.ConfidenceLow)
	}

	second, err := predictor.Analyze(context.Background(), long, short)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if second.Long.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence after an exact prediction = %q, want %q",
			second.Long.Confidence, domain.ConfidenceHigh)
	}
}

func TestScanEnrichmentOmittedOnPredictorFailure(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue:      "binance",
			rates:      map[string]string{"BTC/USDT": "0.0001"},
			asks:       map[string]string{"BTC/USDT": "100.00"},
			bids:       map[string]string{"BTC/USDT": "100.00"},
			premiumErr: errors.New("premium endpoint down"),
		},
		&fakeGateway{
			venue: "bybit",
			rates: map[string]string{"BTC/USDT": "0.0006"},
			asks:  map[string]string{"BTC/USDT": "100.00"},
			bids:  map[string]string{"BTC/USDT": "100.00"},
		},
	}

	predictor := NewPredictor(gateways, 60, testLogger())
	scanner := NewScanner(gateways, fixedUniverse{btc}, zeroFees(),
		domain.NewHistoryTracker(50), predictor, DefaultScannerConfig(), testLogger())

	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1 (enrichment failure is not fatal)", len(opps))
	}
	if opps[0].Prediction != nil {
		t.Error("prediction block present despite premium fetch failure")
	}
}

func TestScanEnrichmentAttachedWhenHealthy(t *testing.T) {
	gateways := []marketapp.VenueGateway{
		&fakeGateway{
			venue:   "binance",
			rates:   map[string]string{"BTC/USDT": "0.0001"},
			asks:    map[string]string{"BTC/USDT": "100.00"},
			bids:    map[string]string{"BTC/USDT": "100.00"},
			premium: "0.0001",
		},
		&fakeGateway{
			venue:   "bybit",
			rates:   map[string]string{"BTC/USDT": "0.0006"},
			asks:    map[string]string{"BTC/USDT": "100.00"},
			bids:    map[string]string{"BTC/USDT": "100.00"},
			premium: "0.0004",
		},
	}

	predictor := NewPredictor(gateways, 60, testLogger())
	scanner := NewScanner(gateways, fixedUniverse{btc}, zeroFees(),
		domain.NewHistoryTracker(50), predictor, DefaultScannerConfig(), testLogger())

	opps, err := scanner.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}

	analysis := opps[0].Prediction
	if analysis == nil {
		t.Fatal("prediction block missing")
	}
	if analysis.Long.Venue != "binance" || analysis.Short.Venue != "bybit" {
		t.Errorf("prediction venues = (%s, %s), want (binance, bybit)",
			analysis.Long.Venue, analysis.Short.Venue)
	}
}
