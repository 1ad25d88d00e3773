package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NewDecimal creates decimal from float64
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// Tracked universe. VIX is an index level, not a tradeable symbol here;
// it feeds the regime detector only.
const (
	SymbolSPY = "SPY"
	SymbolQQQ = "QQQ"
	SymbolIWM = "IWM"
	SymbolVIX = "VIX"
)

// PricePoint represents a single observed trade price. Immutable once recorded.
type PricePoint struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
}

// SignalKind identifies the closed set of signal types the generator emits
type SignalKind string

const (
	KindCorrelationBreakdown  SignalKind = "correlation_breakdown"
	KindCorrelationDivergence SignalKind = "correlation_divergence"
	KindMomentumLong          SignalKind = "momentum_long"
	KindMomentumShort         SignalKind = "momentum_short"
	KindVolatilityExpansion   SignalKind = "volatility_expansion"
	KindVolatilityContraction SignalKind = "volatility_contraction"
	KindModelPrediction       SignalKind = "model_prediction"
)

// SignalStrength is a coarse label derived from confidence
type SignalStrength string

const (
	StrengthVeryWeak SignalStrength = "VERY_WEAK"
	StrengthWeak     SignalStrength = "WEAK"
	StrengthModerate SignalStrength = "MODERATE"
	StrengthStrong   SignalStrength = "STRONG"
)

// Rank returns numeric rank for sorting (STRONG=4 ... VERY_WEAK=1)
func (s SignalStrength) Rank() int {
	switch s {
	case StrengthStrong:
		return 4
	case StrengthModerate:
		return 3
	case StrengthWeak:
		return 2
	default:
		return 1
	}
}

// StrengthFromConfidence maps a confidence score to a strength label
func StrengthFromConfidence(confidence float64) SignalStrength {
	switch {
	case confidence >= 0.8:
		return StrengthStrong
	case confidence >= 0.65:
		return StrengthModerate
	case confidence >= 0.5:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// Signal represents one trading signal. Never mutated after creation;
// superseded by a newer signal with the same (symbol, kind) key.
type Signal struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Kind        SignalKind     `json:"kind"`
	Strength    SignalStrength `json:"strength"`
	Confidence  float64        `json:"confidence"`
	Reasoning   []string       `json:"reasoning"`
	Source      SignalSource   `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// SignalID derives the unique per-generation id (kind+symbol+timestamp)
func SignalID(kind SignalKind, symbol string, ts time.Time) string {
	return fmt.Sprintf("%s:%s:%d", kind, symbol, ts.UnixNano())
}

// SignalSource carries the strongly-typed payload of whichever source
// produced the signal. Exactly one field is non-nil.
type SignalSource struct {
	Correlation *CorrelationTrigger `json:"correlation,omitempty"`
	Momentum    *MomentumTrigger    `json:"momentum,omitempty"`
	Volatility  *VolatilityTrigger  `json:"volatility,omitempty"`
	Model       *ModelTrigger       `json:"model,omitempty"`
}

// CorrelationTrigger describes a correlation breakdown/divergence trigger
type CorrelationTrigger struct {
	Pair               Pair           `json:"pair"`
	CurrentCorrelation float64        `json:"current_correlation"`
	ZScore             float64        `json:"z_score"`
	DivergenceType     DivergenceType `json:"divergence_type"`
	IsBreakdown        bool           `json:"is_breakdown"`
}

// MomentumTrigger describes a price momentum trigger
type MomentumTrigger struct {
	PercentChange float64 `json:"percent_change"`
	Lookback      int     `json:"lookback"`
	RSI           float64 `json:"rsi,omitempty"`
}

// VolatilityTrigger describes a regime transition trigger
type VolatilityTrigger struct {
	Regime   RegimeType `json:"regime"`
	VIXLevel float64    `json:"vix_level"`
}

// ModelTrigger describes an external model prediction trigger
type ModelTrigger struct {
	SuccessProbability float64 `json:"success_probability"`
	Rationale          string  `json:"rationale,omitempty"`
}

// RegimeType classifies the VIX level into a discrete volatility regime
type RegimeType string

const (
	RegimeLowVolatility     RegimeType = "low_volatility"
	RegimeNormalVolatility  RegimeType = "normal_volatility"
	RegimeHighVolatility    RegimeType = "high_volatility"
	RegimeExtremeVolatility RegimeType = "extreme_volatility"
)

// VIXTrend is the direction of the recent VIX series
type VIXTrend string

const (
	TrendRising  VIXTrend = "rising"
	TrendFalling VIXTrend = "falling"
	TrendNeutral VIXTrend = "neutral"
)

// RegimeState is the full output of one regime detection cycle
type RegimeState struct {
	Regime           RegimeType `json:"regime"`
	VIXLevel         float64    `json:"vix_level"`
	Confidence       float64    `json:"confidence"`
	AdaptationFactor float64    `json:"adaptation_factor"`
	RegimeChange     bool       `json:"regime_change"`
	Trend            VIXTrend   `json:"vix_trend"`
	Percentile       float64    `json:"volatility_percentile"`
	DetectedAt       time.Time  `json:"detected_at"`
}

// AdaptiveParameters are derived from the current adaptation factor each
// cycle and scale downstream behavior system-wide
type AdaptiveParameters struct {
	AdaptationFactor              float64   `json:"adaptation_factor"`
	PositionSizeMultiplier        float64   `json:"position_size_multiplier"`
	ConfidenceThresholdAdjustment float64   `json:"confidence_threshold_adjustment"`
	StopLossTightening            float64   `json:"stop_loss_tightening"`
	ProfitTargetAdjustment        float64   `json:"profit_target_adjustment"`
	UpdatedAt                     time.Time `json:"updated_at"`
}

// MarketConditions is the explicit sizing input struct. Zero values mean
// "unknown": the sizer treats unknown fields as neutral adjustments.
type MarketConditions struct {
	VIXLevel          float64         `json:"vix_level"`
	CorrelationRisk   float64         `json:"correlation_risk"`
	PortfolioExposure decimal.Decimal `json:"portfolio_exposure"`
	DataAge           time.Duration   `json:"data_age"`
}
