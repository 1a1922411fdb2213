package app

import (
	"context"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	marketapp "github.com/dlemos/perparb/business/market/app"
	marketdomain "github.com/dlemos/perparb/business/market/domain"
	"github.com/dlemos/perparb/business/scanner/domain"
	"github.com/dlemos/perparb/internal/apperror"
	"github.com/dlemos/perparb/internal/logger"
)

const (
	// DefaultPredictionLookback is the premium window size per leg.
	DefaultPredictionLookback = 60

	// interestRate is the standard per-interval interest component of the
	// venue funding formula (0.01% per 8h).
	interestRate = 0.0001

	// premiumClamp bounds the interest correction at ±0.05%, matching the
	// clamp the venues apply.
	premiumClamp = 0.0005

	// premiumScale normalizes premium volatility into the stability score.
	premiumScale = 0.0005

	// Confidence thresholds on the mean absolute prediction error.
	confidenceHighError   = 0.0001
	confidenceMediumError = 0.0003
)

// legKey identifies one (venue, instrument) premium series.
type legKey struct {
	venue string
	inst  marketdomain.Instrument
}

// Predictor estimates the next funding rate per venue from the premium
// index, the way venues themselves derive funding:
//
//	predicted = TWAP(premium) + clamp(interest - TWAP(premium), ±0.05%)
//
// It tracks its own past predictions against realized rates to produce a
// confidence label. All state is in-memory for the process lifetime.
type Predictor struct {
	gateways map[string]marketapp.VenueGateway
	lookback int
	logger   logger.LoggerInterface

	mu       sync.Mutex
	premiums map[legKey][]float64
	// last prediction per leg, compared against the next realized rate
	pending map[legKey]float64
	// rolling mean absolute prediction error per leg
	errs map[legKey][]float64
}

// NewPredictor creates a predictor over the given gateways.
func NewPredictor(gateways []marketapp.VenueGateway, lookback int, log logger.LoggerInterface) *Predictor {
	if lookback <= 1 {
		lookback = DefaultPredictionLookback
	}

	byVenue := make(map[string]marketapp.VenueGateway, len(gateways))
	for _, gw := range gateways {
		byVenue[gw.Venue()] = gw
	}

	return &Predictor{
		gateways: byVenue,
		lookback: lookback,
		logger:   log,
		premiums: make(map[legKey][]float64),
		pending:  make(map[legKey]float64),
		errs:     make(map[legKey][]float64),
	}
}

// Analyze enriches one opportunity with per-leg predictions and a stability
// view. Long and Short are this cycle's realized funding quotes for the two
// chosen venues. Errors mean the enrichment is omitted, never that the scan
// fails.
func (p *Predictor) Analyze(ctx context.Context, long, short marketdomain.FundingQuote) (*domain.PredictionAnalysis, error) {
	longPred, longWindow, err := p.analyzeLeg(ctx, long)
	if err != nil {
		return nil, err
	}

	shortPred, shortWindow, err := p.analyzeLeg(ctx, short)
	if err != nil {
		return nil, err
	}

	longStd := stdDev(longWindow)
	shortStd := stdDev(shortWindow)

	combined := math.Sqrt(longStd*longStd + shortStd*shortStd)
	stability := 1.0 / (1.0 + combined/premiumScale)

	return &domain.PredictionAnalysis{
		Long:               longPred,
		Short:              shortPred,
		StabilityScore:     stability,
		Trend:              trendLabel(differentials(longWindow, shortWindow)),
		LongPremiumStdDev:  longStd,
		ShortPremiumStdDev: shortStd,
	}, nil
}

// analyzeLeg fetches the venue's premium snapshot, updates the leg's window
// and produces a prediction.
func (p *Predictor) analyzeLeg(ctx context.Context, realized marketdomain.FundingQuote) (domain.VenuePrediction, []float64, error) {
	gw, ok := p.gateways[realized.Venue]
	if !ok {
		return domain.VenuePrediction{}, nil, apperror.New(apperror.CodeEnrichmentFailed,
			apperror.WithVenue(realized.Venue),
			apperror.WithContext("no gateway for venue"))
	}

	quote, err := gw.FetchPremium(ctx, realized.Instrument)
	if err != nil {
		return domain.VenuePrediction{}, nil, apperror.New(apperror.CodeEnrichmentFailed,
			apperror.WithVenue(realized.Venue),
			apperror.WithContext(realized.Instrument.String()),
			apperror.WithCause(err))
	}

	premium, _ := quote.PremiumIndex().Float64()
	key := legKey{venue: realized.Venue, inst: realized.Instrument}
	realizedRate, _ := realized.Rate.Float64()

	p.mu.Lock()

	// Settle the previous prediction against the realized rate before
	// producing a new one.
	if prev, ok := p.pending[key]; ok {
		errWindow := append(p.errs[key], math.Abs(prev-realizedRate))
		if len(errWindow) > p.lookback {
			errWindow = errWindow[len(errWindow)-p.lookback:]
		}
		p.errs[key] = errWindow
	}

	window := append(p.premiums[key], premium)
	if len(window) > p.lookback {
		window = window[len(window)-p.lookback:]
	}
	p.premiums[key] = window

	twap := mean(window)
	predicted := twap + clamp(interestRate-twap, -premiumClamp, premiumClamp)
	p.pending[key] = predicted

	confidence := confidenceLabel(p.errs[key])

	windowCopy := make([]float64, len(window))
	copy(windowCopy, window)

	p.mu.Unlock()

	return domain.VenuePrediction{
		Venue:         realized.Venue,
		PremiumIndex:  decimal.NewFromFloat(premium),
		TWAPPremium:   decimal.NewFromFloat(twap),
		PredictedRate: decimal.NewFromFloat(predicted),
		Confidence:    confidence,
	}, windowCopy, nil
}

// confidenceLabel grades the model by its own past error. With no settled
// predictions yet the label is low.
func confidenceLabel(errs []float64) string {
	if len(errs) == 0 {
		return domain.ConfidenceLow
	}
	meanErr := mean(errs)
	switch {
	case meanErr < confidenceHighError:
		return domain.ConfidenceHigh
	case meanErr < confidenceMediumError:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// differentials pairs the two premium windows up to their common length,
// newest-aligned, producing the short-minus-long series.
func differentials(long, short []float64) []float64 {
	n := len(long)
	if len(short) < n {
		n = len(short)
	}
	if n == 0 {
		return nil
	}

	long = long[len(long)-n:]
	short = short[len(short)-n:]

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = short[i] - long[i]
	}
	return out
}

// trendLabel compares the first and second half-window means of the
// differential series.
func trendLabel(diffs []float64) string {
	if len(diffs) < 4 {
		return domain.TrendStable
	}

	half := len(diffs) / 2
	first := math.Abs(mean(diffs[:half]))
	second := math.Abs(mean(diffs[half:]))

	switch {
	case second > first*1.1:
		return domain.TrendWidening
	case second < first*0.9:
		return domain.TrendNarrowing
	default:
		return domain.TrendStable
	}
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func stdDev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	m := mean(samples)
	var sq float64
	for _, s := range samples {
		d := s - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(samples)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
