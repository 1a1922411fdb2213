package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Scanner-specific error codes
const (
	// Venue gateway errors
	CodeVenueUnavailable     Code = "VENUE_UNAVAILABLE"
	CodeVenueAPIError        Code = "VENUE_API_ERROR"
	CodeVenueRateLimited     Code = "VENUE_RATE_LIMITED"
	CodeFundingFetchFailed   Code = "FUNDING_FETCH_FAILED"
	CodeOrderbookFetchFailed Code = "ORDERBOOK_FETCH_FAILED"
	CodeInvalidOrderbook     Code = "INVALID_ORDERBOOK"
	CodePremiumFetchFailed   Code = "PREMIUM_FETCH_FAILED"

	// Universe discovery errors
	CodeUniverseDiscoveryFailed Code = "UNIVERSE_DISCOVERY_FAILED"
	CodeSymbolNotSupported      Code = "SYMBOL_NOT_SUPPORTED"

	// Scan errors
	CodeInsufficientData      Code = "INSUFFICIENT_DATA"
	CodeCostCalculationFailed Code = "COST_CALCULATION_FAILED"
	CodeEnrichmentFailed      Code = "ENRICHMENT_FAILED"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"

	// Account/risk errors
	CodeAccountFetchFailed Code = "ACCOUNT_FETCH_FAILED"
	CodeMissingCredentials Code = "MISSING_CREDENTIALS"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
