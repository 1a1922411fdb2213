package domain

import "github.com/shopspring/decimal"

// Confidence labels for a venue prediction, derived from how far the
// model's past predictions landed from realized rates.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Trend labels for the rate differential over the look-back window.
const (
	TrendWidening  = "widening"
	TrendNarrowing = "narrowing"
	TrendStable    = "stable"
)

// VenuePrediction is one venue's predicted next funding rate.
type VenuePrediction struct {
	Venue         string
	PremiumIndex  decimal.Decimal
	TWAPPremium   decimal.Decimal
	PredictedRate decimal.Decimal
	Confidence    string
}

// PredictionAnalysis enriches an Opportunity with both legs' predictions
// and a stability view of the differential.
type PredictionAnalysis struct {
	Long  VenuePrediction
	Short VenuePrediction

	// StabilityScore is in [0, 1]; 1 means the premium differential has
	// been flat over the look-back window.
	StabilityScore float64

	Trend string

	LongPremiumStdDev  float64
	ShortPremiumStdDev float64
}
