// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Venues     VenuesConfig     `mapstructure:"venues"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	HealthPort  int    `mapstructure:"health_port"`
}

// VenuesConfig holds per-venue API configuration.
type VenuesConfig struct {
	Binance VenueConfig `mapstructure:"binance"`
	Bybit   VenueConfig `mapstructure:"bybit"`
	OKX     VenueConfig `mapstructure:"okx"`
}

// VenueConfig holds a single venue's REST API settings. APIKey/APISecret are
// only needed for signed account reads; market data endpoints are public.
type VenueConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// HasCredentials reports whether both key and secret are set.
func (c *VenueConfig) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// ScannerConfig holds scan orchestration configuration.
type ScannerConfig struct {
	UniverseLimit          int           `mapstructure:"universe_limit"`
	ScanInterval           time.Duration `mapstructure:"scan_interval"`
	MaxConcurrentSymbols   int           `mapstructure:"max_concurrent_symbols"`
	MaxConcurrentVenues    int           `mapstructure:"max_concurrent_venues"`
	FeeMode                string        `mapstructure:"fee_mode"`      // "mixed" or "taker"
	IntervalMode           string        `mapstructure:"interval_mode"` // "min" or "avg"
	VolatilityAdjustedRank bool          `mapstructure:"volatility_adjusted_rank"`
	MinAPR                 float64       `mapstructure:"min_apr"`
	TopN                   int           `mapstructure:"top_n"`
	HistoryWindow          int           `mapstructure:"history_window"`
	Mock                   bool          `mapstructure:"mock"`
	TUIMode                bool          `mapstructure:"-"` // Set at runtime, not from config file
}

// MinAPRDecimal returns the APR floor as decimal.Decimal.
func (c *ScannerConfig) MinAPRDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinAPR)
}

// PredictionConfig holds the funding prediction sub-model configuration.
type PredictionConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Lookback int  `mapstructure:"lookback"`
}

// RiskConfig holds the account risk guard configuration.
type RiskConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	WarningThreshold float64       `mapstructure:"warning_threshold"`
	DangerThreshold  float64       `mapstructure:"danger_threshold"`
	TransferBuffer   float64       `mapstructure:"transfer_buffer"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin, console, collector, empty
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("PERPARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "PERPARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "PERPARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "PERPARB_LOG_LEVEL", "LOG_LEVEL")

	// Venues
	v.BindEnv("venues.binance.base_url", "PERPARB_BINANCE_BASE_URL", "BINANCE_BASE_URL")
	v.BindEnv("venues.binance.api_key", "PERPARB_BINANCE_API_KEY", "BINANCE_API_KEY")
	v.BindEnv("venues.binance.api_secret", "PERPARB_BINANCE_API_SECRET", "BINANCE_API_SECRET")
	v.BindEnv("venues.bybit.base_url", "PERPARB_BYBIT_BASE_URL", "BYBIT_BASE_URL")
	v.BindEnv("venues.bybit.api_key", "PERPARB_BYBIT_API_KEY", "BYBIT_API_KEY")
	v.BindEnv("venues.bybit.api_secret", "PERPARB_BYBIT_API_SECRET", "BYBIT_API_SECRET")
	v.BindEnv("venues.okx.base_url", "PERPARB_OKX_BASE_URL", "OKX_BASE_URL")
	v.BindEnv("venues.okx.api_key", "PERPARB_OKX_API_KEY", "OKX_API_KEY")
	v.BindEnv("venues.okx.api_secret", "PERPARB_OKX_API_SECRET", "OKX_API_SECRET")

	// Scanner
	v.BindEnv("scanner.universe_limit", "PERPARB_UNIVERSE_LIMIT")
	v.BindEnv("scanner.scan_interval", "PERPARB_SCAN_INTERVAL")
	v.BindEnv("scanner.fee_mode", "PERPARB_FEE_MODE")
	v.BindEnv("scanner.interval_mode", "PERPARB_INTERVAL_MODE")
	v.BindEnv("scanner.min_apr", "PERPARB_MIN_APR")
	v.BindEnv("scanner.mock", "PERPARB_MOCK")

	// Prediction
	v.BindEnv("prediction.enabled", "PERPARB_PREDICTION_ENABLED")

	// Risk
	v.BindEnv("risk.enabled", "PERPARB_RISK_ENABLED")

	// Telemetry
	v.BindEnv("telemetry.enabled", "PERPARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "PERPARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "PERPARB_TRACE_PROVIDER", "TRACE_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "PERPARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "perparb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.health_port", 8099)

	// Venue defaults (public endpoints, credentials empty)
	v.SetDefault("venues.binance.enabled", true)
	v.SetDefault("venues.binance.base_url", "https://fapi.binance.com")
	v.SetDefault("venues.binance.requests_per_minute", 1200)
	v.SetDefault("venues.binance.request_timeout", "30s")
	v.SetDefault("venues.bybit.enabled", true)
	v.SetDefault("venues.bybit.base_url", "https://api.bybit.com")
	v.SetDefault("venues.bybit.requests_per_minute", 600)
	v.SetDefault("venues.bybit.request_timeout", "30s")
	v.SetDefault("venues.okx.enabled", true)
	v.SetDefault("venues.okx.base_url", "https://www.okx.com")
	v.SetDefault("venues.okx.requests_per_minute", 600)
	v.SetDefault("venues.okx.request_timeout", "30s")

	// Scanner defaults
	v.SetDefault("scanner.universe_limit", 20)
	v.SetDefault("scanner.scan_interval", "60s")
	v.SetDefault("scanner.max_concurrent_symbols", 10)
	v.SetDefault("scanner.max_concurrent_venues", 3)
	v.SetDefault("scanner.fee_mode", "mixed")
	v.SetDefault("scanner.interval_mode", "min")
	v.SetDefault("scanner.volatility_adjusted_rank", false)
	v.SetDefault("scanner.min_apr", 0)
	v.SetDefault("scanner.top_n", 5)
	v.SetDefault("scanner.history_window", 50)
	v.SetDefault("scanner.mock", false)

	// Prediction defaults
	v.SetDefault("prediction.enabled", true)
	v.SetDefault("prediction.lookback", 60)

	// Risk defaults
	v.SetDefault("risk.enabled", true)
	v.SetDefault("risk.poll_interval", "5s")
	v.SetDefault("risk.warning_threshold", 0.6)
	v.SetDefault("risk.danger_threshold", 0.8)
	v.SetDefault("risk.transfer_buffer", 1000)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "perparb")
	v.SetDefault("telemetry.trace_provider", "empty")
	v.SetDefault("telemetry.prometheus_port", 2223)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Venues.Binance.Enabled && !c.Venues.Bybit.Enabled && !c.Venues.OKX.Enabled && !c.Scanner.Mock {
		return fmt.Errorf("at least one venue must be enabled")
	}
	if c.Scanner.UniverseLimit <= 0 {
		return fmt.Errorf("scanner.universe_limit must be positive")
	}
	if c.Scanner.MaxConcurrentSymbols <= 0 {
		return fmt.Errorf("scanner.max_concurrent_symbols must be positive")
	}
	if c.Scanner.MaxConcurrentVenues <= 0 {
		return fmt.Errorf("scanner.max_concurrent_venues must be positive")
	}
	if c.Scanner.FeeMode != "mixed" && c.Scanner.FeeMode != "taker" {
		return fmt.Errorf("scanner.fee_mode must be %q or %q, got %q", "mixed", "taker", c.Scanner.FeeMode)
	}
	if c.Scanner.IntervalMode != "min" && c.Scanner.IntervalMode != "avg" {
		return fmt.Errorf("scanner.interval_mode must be %q or %q, got %q", "min", "avg", c.Scanner.IntervalMode)
	}
	if c.Prediction.Enabled && c.Prediction.Lookback < 2 {
		return fmt.Errorf("prediction.lookback must be at least 2")
	}
	if c.Risk.Enabled {
		if c.Risk.WarningThreshold <= 0 || c.Risk.WarningThreshold >= 1 {
			return fmt.Errorf("risk.warning_threshold must be in (0, 1)")
		}
		if c.Risk.DangerThreshold <= c.Risk.WarningThreshold || c.Risk.DangerThreshold >= 1 {
			return fmt.Errorf("risk.danger_threshold must be in (warning_threshold, 1)")
		}
	}
	return nil
}
