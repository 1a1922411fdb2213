package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Venue gateway errors
	CodeVenueUnavailable:     "Venue is unavailable",
	CodeVenueAPIError:        "Venue API error",
	CodeVenueRateLimited:     "Venue rate limit exceeded",
	CodeFundingFetchFailed:   "Failed to fetch funding rate",
	CodeOrderbookFetchFailed: "Failed to fetch orderbook",
	CodeInvalidOrderbook:     "Invalid orderbook data",
	CodePremiumFetchFailed:   "Failed to fetch premium index",

	// Universe discovery errors
	CodeUniverseDiscoveryFailed: "Universe discovery failed",
	CodeSymbolNotSupported:      "Symbol not supported by venue",

	// Scan errors
	CodeInsufficientData:      "Fewer than two venues reported usable data",
	CodeCostCalculationFailed: "Cost calculation failed",
	CodeEnrichmentFailed:      "Prediction enrichment failed",
	CodeInsufficientLiquidity: "Insufficient liquidity at top of book",

	// Account/risk errors
	CodeAccountFetchFailed: "Failed to fetch account state",
	CodeMissingCredentials: "Venue credentials are not configured",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
