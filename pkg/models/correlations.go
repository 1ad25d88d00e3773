package models

import (
	"fmt"
	"time"
)

// Pair identifies an ordered symbol pair
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// Key returns the cache/map key for the pair
func (p Pair) Key() string {
	return fmt.Sprintf("%s-%s", p.Base, p.Quote)
}

// CorrelationSample holds pairwise return correlations over the three
// nested lookback windows, plus rolling baseline statistics. Coefficients
// are always in [-1, 1]; degenerate windows are normalized to 0.0.
type CorrelationSample struct {
	Pair         Pair      `json:"pair"`
	ShortTerm    float64   `json:"short_term"`
	MediumTerm   float64   `json:"medium_term"`
	LongTerm     float64   `json:"long_term"`
	RollingMean  float64   `json:"rolling_mean"`
	RollingStd   float64   `json:"rolling_std"`
	SampleSize   int       `json:"sample_size"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// Current returns the pair's current correlation, defined as the
// short-term window value.
func (s CorrelationSample) Current() float64 {
	return s.ShortTerm
}

// DivergenceType classifies how far the current correlation sits from
// its historical baseline, in z-score bands
type DivergenceType string

const (
	DivergenceNormal      DivergenceType = "normal"
	DivergenceModerate    DivergenceType = "moderate"
	DivergenceSignificant DivergenceType = "significant"
	DivergenceExtreme     DivergenceType = "extreme"
)

// DivergenceAnalysis is the per-pair divergence/breakdown assessment.
// IsBreakdown is independent of the z-score classification: it fires
// whenever the current correlation drops below the breakdown threshold.
type DivergenceAnalysis struct {
	Pair               Pair           `json:"pair"`
	CurrentCorrelation float64        `json:"current_correlation"`
	HistoricalMean     float64        `json:"historical_mean"`
	HistoricalStd      float64        `json:"historical_std"`
	ZScore             float64        `json:"z_score"`
	Type               DivergenceType `json:"divergence_type"`
	IsBreakdown        bool           `json:"is_breakdown"`
	Strength           float64        `json:"divergence_strength"`
	PriceDivergence    float64        `json:"price_divergence"`
	AnalyzedAt         time.Time      `json:"analyzed_at"`
}
