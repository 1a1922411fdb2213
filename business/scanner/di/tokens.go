// Package di contains dependency injection tokens for the scanner context.
package di

import (
	"github.com/dlemos/perparb/business/scanner/app"
	"github.com/dlemos/perparb/business/scanner/domain"
	"github.com/dlemos/perparb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Scanner  = di.NewToken[*app.Scanner]("scanner.Scanner")
	Reporter = di.NewToken[app.Reporter]("scanner.Reporter")
)

// Private dependency tokens - internal to the scanner module
var (
	FeeSchedule    = di.NewToken[*domain.FeeSchedule]("scanner:feeSchedule")
	HistoryTracker = di.NewToken[*domain.HistoryTracker]("scanner:historyTracker")
	Predictor      = di.NewToken[*app.Predictor]("scanner:predictor")
)

// Helper functions for type-safe access
func GetScanner(c di.ServiceRegistry) *app.Scanner {
	return di.GetToken(c, Scanner)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetFeeSchedule(c di.ServiceRegistry) *domain.FeeSchedule {
	return di.GetToken(c, FeeSchedule)
}

func GetHistoryTracker(c di.ServiceRegistry) *domain.HistoryTracker {
	return di.GetToken(c, HistoryTracker)
}

func GetPredictor(c di.ServiceRegistry) *app.Predictor {
	return di.GetToken(c, Predictor)
}
