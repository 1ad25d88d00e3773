package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Universe    UniverseConfig    `envconfig:"UNIVERSE"`
	Feed        FeedConfig        `envconfig:"FEED"`
	Correlation CorrelationConfig `envconfig:"CORRELATION"`
	Regime      RegimeConfig      `envconfig:"REGIME"`
	Signals     SignalsConfig     `envconfig:"SIGNALS"`
	Risk        RiskConfig        `envconfig:"RISK"`
	Redis       RedisConfig       `envconfig:"REDIS"`
	Database    DatabaseConfig    `envconfig:"DATABASE"`
	ClickHouse  ClickHouseConfig  `envconfig:"CLICKHOUSE"`
	Telegram    TelegramConfig    `envconfig:"TELEGRAM"`
	Logging     LoggingConfig     `envconfig:"LOGGING"`
}

// UniverseConfig represents the tracked instrument universe
type UniverseConfig struct {
	Symbols   []string `envconfig:"UNIVERSE_SYMBOLS" default:"SPY,QQQ,IWM"`
	VIXSymbol string   `envconfig:"UNIVERSE_VIX_SYMBOL" default:"VIX"`
}

// FeedConfig represents market data feed parameters
type FeedConfig struct {
	URL              string        `envconfig:"FEED_URL" default:"wss://localhost:8443/stream"`
	APIKey           string        `envconfig:"FEED_API_KEY" required:"false"`
	ReconnectDelay   time.Duration `envconfig:"FEED_RECONNECT_DELAY" default:"5s"`
	StalenessTimeout time.Duration `envconfig:"FEED_STALENESS_TIMEOUT" default:"5m"`
}

// CorrelationConfig represents correlation engine parameters
type CorrelationConfig struct {
	ShortWindow        int           `envconfig:"CORRELATION_SHORT_WINDOW" default:"20"`
	MediumWindow       int           `envconfig:"CORRELATION_MEDIUM_WINDOW" default:"60"`
	LongWindow         int           `envconfig:"CORRELATION_LONG_WINDOW" default:"180"`
	RollingWindow      int           `envconfig:"CORRELATION_ROLLING_WINDOW" default:"20"`
	MinSamples         int           `envconfig:"CORRELATION_MIN_SAMPLES" default:"10"`
	MinBaselineSamples int           `envconfig:"CORRELATION_MIN_BASELINE_SAMPLES" default:"10"`
	BreakdownThreshold float64       `envconfig:"CORRELATION_BREAKDOWN_THRESHOLD" default:"0.3"`
	RefreshInterval    time.Duration `envconfig:"CORRELATION_REFRESH_INTERVAL" default:"30s"`
}

// RegimeConfig represents volatility regime detector parameters
type RegimeConfig struct {
	LowThreshold     float64       `envconfig:"REGIME_LOW_THRESHOLD" default:"15.0"`
	NormalThreshold  float64       `envconfig:"REGIME_NORMAL_THRESHOLD" default:"25.0"`
	HighThreshold    float64       `envconfig:"REGIME_HIGH_THRESHOLD" default:"35.0"`
	RefreshInterval  time.Duration `envconfig:"REGIME_REFRESH_INTERVAL" default:"60s"`
	StateTTL         time.Duration `envconfig:"REGIME_STATE_TTL" default:"300s"`
	HistoryCapacity  int           `envconfig:"REGIME_HISTORY_CAPACITY" default:"500"`
	TrendLookback    int           `envconfig:"REGIME_TREND_LOOKBACK" default:"10"`
	PercentileWindow int           `envconfig:"REGIME_PERCENTILE_WINDOW" default:"100"`
}

// SignalsConfig represents signal generator parameters
type SignalsConfig struct {
	MomentumThreshold        float64       `envconfig:"SIGNALS_MOMENTUM_THRESHOLD" default:"0.02"`
	MomentumLookback         int           `envconfig:"SIGNALS_MOMENTUM_LOOKBACK" default:"10"`
	MinConfidence            float64       `envconfig:"SIGNALS_MIN_CONFIDENCE" default:"0.65"`
	ModelConfidenceThreshold float64       `envconfig:"SIGNALS_MODEL_CONFIDENCE_THRESHOLD" default:"0.65"`
	MaxPerSymbol             int           `envconfig:"SIGNALS_MAX_PER_SYMBOL" default:"2"`
	RefreshInterval          time.Duration `envconfig:"SIGNALS_REFRESH_INTERVAL" default:"30s"`
	ValidityWindow           time.Duration `envconfig:"SIGNALS_VALIDITY_WINDOW" default:"3m"`
}

// RiskConfig represents risk management parameters
type RiskConfig struct {
	AccountSize             float64       `envconfig:"RISK_ACCOUNT_SIZE" default:"60000.0"`
	MinPositionPercent      float64       `envconfig:"RISK_MIN_POSITION_PERCENT" default:"20.0"`
	MaxPositionPercent      float64       `envconfig:"RISK_MAX_POSITION_PERCENT" default:"40.0"`
	MaxSizeMultiplier       float64       `envconfig:"RISK_MAX_SIZE_MULTIPLIER" default:"2.0"`
	MaxPortfolioExposure    float64       `envconfig:"RISK_MAX_PORTFOLIO_EXPOSURE_PERCENT" default:"80.0"`
	MaxDailyLoss            float64       `envconfig:"RISK_MAX_DAILY_LOSS" default:"3000.0"`
	EmergencyHaltLoss       float64       `envconfig:"RISK_EMERGENCY_HALT_LOSS" default:"5000.0"`
	MaxVIXThreshold         float64       `envconfig:"RISK_MAX_VIX_THRESHOLD" default:"45.0"`
	MaxTotalPositions       int           `envconfig:"RISK_MAX_TOTAL_POSITIONS" default:"6"`
	MaxPerSymbolPositions   int           `envconfig:"RISK_MAX_PER_SYMBOL_POSITIONS" default:"2"`
	MaxPortfolioDelta       float64       `envconfig:"RISK_MAX_PORTFOLIO_DELTA" default:"500.0"`
	MaxPortfolioGamma       float64       `envconfig:"RISK_MAX_PORTFOLIO_GAMMA" default:"50.0"`
	MaxPortfolioVega        float64       `envconfig:"RISK_MAX_PORTFOLIO_VEGA" default:"1000.0"`
	MonitorInterval         time.Duration `envconfig:"RISK_MONITOR_INTERVAL" default:"15s"`
	DailyLossWarningPercent float64       `envconfig:"RISK_DAILY_LOSS_WARNING_PERCENT" default:"75.0"`
}

// RedisConfig represents shared-state store connection parameters
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"odte"`
	User     string `envconfig:"DB_USER" default:"odte"`
	Password string `envconfig:"DB_PASSWORD" required:"false"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// ClickHouseConfig represents analytics sink parameters
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"odte_analytics"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
}

// TelegramConfig represents operator alert channel configuration
type TelegramConfig struct {
	BotToken      string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID        int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
	AlertOnHalts  bool   `envconfig:"TELEGRAM_ALERT_ON_HALTS" default:"true"`
	AlertOnLimits bool   `envconfig:"TELEGRAM_ALERT_ON_LIMITS" default:"true"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" required:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("at least one universe symbol must be configured")
	}

	if c.Correlation.ShortWindow <= 1 {
		return fmt.Errorf("correlation short_window must be greater than 1")
	}
	if c.Correlation.MediumWindow < c.Correlation.ShortWindow {
		return fmt.Errorf("correlation medium_window must not be shorter than short_window")
	}
	if c.Correlation.LongWindow < c.Correlation.MediumWindow {
		return fmt.Errorf("correlation long_window must not be shorter than medium_window")
	}
	if c.Correlation.BreakdownThreshold < -1 || c.Correlation.BreakdownThreshold > 1 {
		return fmt.Errorf("correlation breakdown_threshold must be within [-1, 1]")
	}

	if !(c.Regime.LowThreshold < c.Regime.NormalThreshold && c.Regime.NormalThreshold < c.Regime.HighThreshold) {
		return fmt.Errorf("regime thresholds must be strictly increasing")
	}

	if c.Signals.MinConfidence <= 0 || c.Signals.MinConfidence > 1 {
		return fmt.Errorf("signals min_confidence must be within (0, 1]")
	}
	if c.Signals.MaxPerSymbol < 1 {
		return fmt.Errorf("signals max_per_symbol must be at least 1")
	}

	if c.Risk.AccountSize <= 0 {
		return fmt.Errorf("risk account_size must be positive")
	}
	if c.Risk.MinPositionPercent <= 0 || c.Risk.MinPositionPercent > 100 {
		return fmt.Errorf("risk min_position_percent must be between 0 and 100")
	}
	if c.Risk.MaxPositionPercent < c.Risk.MinPositionPercent || c.Risk.MaxPositionPercent > 100 {
		return fmt.Errorf("risk max_position_percent must be between min_position_percent and 100")
	}
	if c.Risk.MaxSizeMultiplier < 1 {
		return fmt.Errorf("risk max_size_multiplier must be at least 1")
	}
	if c.Risk.EmergencyHaltLoss <= 0 {
		return fmt.Errorf("risk emergency_halt_loss must be positive")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string for the sqlx driver
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}
