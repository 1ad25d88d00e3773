package regime

import (
	"math"
	"sync"
	"time"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/pkg/models"
)

// Base adaptation factors per regime
const (
	factorLow     = 1.2
	factorNormal  = 1.0
	factorHigh    = 0.7
	factorExtreme = 0.5
)

// Fine-tune bounds applied on top of the base factor
const (
	vixPanicLevel = 40.0
	vixCalmLevel  = 12.0
)

// hysteresisDepth is how many prior classifications vote on whether a
// transition is real or single-sample flapping
const hysteresisDepth = 5

// minPercentileSamples is the history size below which the percentile
// falls back to the neutral 50.0
const minPercentileSamples = 20

// Detector classifies the VIX series into a discrete volatility regime and
// derives the adaptation factor that scales risk system-wide. Observe is
// called by a single worker; reads of the produced state go through the
// shared cache.
type Detector struct {
	cfg *config.RegimeConfig

	mu              sync.Mutex
	vixHistory      []float64
	classifications []models.RegimeType
}

// NewDetector creates a regime detector
func NewDetector(cfg *config.RegimeConfig) *Detector {
	return &Detector{
		cfg:             cfg,
		vixHistory:      make([]float64, 0, cfg.HistoryCapacity),
		classifications: make([]models.RegimeType, 0, cfg.HistoryCapacity),
	}
}

// Classify maps a VIX level to its regime. Deterministic: a boundary value
// always lands on the upper side (VIX 15.0 is normal, 14.999 is low).
func (d *Detector) Classify(vix float64) models.RegimeType {
	switch {
	case vix < d.cfg.LowThreshold:
		return models.RegimeLowVolatility
	case vix < d.cfg.NormalThreshold:
		return models.RegimeNormalVolatility
	case vix < d.cfg.HighThreshold:
		return models.RegimeHighVolatility
	default:
		return models.RegimeExtremeVolatility
	}
}

// Observe runs one full detection cycle for the latest VIX reading and
// returns the resulting regime state
func (d *Detector) Observe(vix float64, now time.Time) models.RegimeState {
	d.mu.Lock()
	defer d.mu.Unlock()

	regime := d.Classify(vix)

	state := models.RegimeState{
		Regime:           regime,
		VIXLevel:         vix,
		Confidence:       d.confidence(vix),
		AdaptationFactor: d.adaptationFactor(regime, vix),
		RegimeChange:     d.detectChange(regime),
		Percentile:       d.percentile(vix),
		DetectedAt:       now,
	}

	d.recordClassification(regime)
	d.recordVIX(vix)

	// Trend includes the current reading
	state.Trend = d.trend()

	return state
}

// confidence is low near a regime boundary and high mid-regime
func (d *Detector) confidence(vix float64) float64 {
	minDistance := math.Abs(vix - d.cfg.LowThreshold)
	for _, threshold := range []float64{d.cfg.NormalThreshold, d.cfg.HighThreshold} {
		if dist := math.Abs(vix - threshold); dist < minDistance {
			minDistance = dist
		}
	}

	return math.Min(1.0, minDistance/5.0)
}

// adaptationFactor derives the risk scalar from the regime, fine-tuned at
// the VIX tails and rounded to two decimals
func (d *Detector) adaptationFactor(regime models.RegimeType, vix float64) float64 {
	factor := factorNormal
	switch regime {
	case models.RegimeLowVolatility:
		factor = factorLow
	case models.RegimeNormalVolatility:
		factor = factorNormal
	case models.RegimeHighVolatility:
		factor = factorHigh
	case models.RegimeExtremeVolatility:
		factor = factorExtreme
	}

	if vix > vixPanicLevel {
		factor *= 0.8
	} else if vix < vixCalmLevel {
		factor *= 1.1
	}

	return round2(factor)
}

// detectChange compares the current classification to the mode of the last
// five prior ones. Fewer than five priors never report a change.
func (d *Detector) detectChange(current models.RegimeType) bool {
	if len(d.classifications) < hysteresisDepth {
		return false
	}

	recent := d.classifications[len(d.classifications)-hysteresisDepth:]

	counts := make(map[models.RegimeType]int, 4)
	for _, r := range recent {
		counts[r]++
	}

	mode := recent[0]
	for _, r := range recent {
		if counts[r] > counts[mode] {
			mode = r
		}
	}

	return current != mode
}

// trend fits a least-squares line through the recent VIX readings
func (d *Detector) trend() models.VIXTrend {
	lookback := d.cfg.TrendLookback
	if len(d.vixHistory) < 2 {
		return models.TrendNeutral
	}
	if len(d.vixHistory) < lookback {
		lookback = len(d.vixHistory)
	}

	values := d.vixHistory[len(d.vixHistory)-lookback:]
	slope := linearSlope(values)

	switch {
	case slope > 0.5:
		return models.TrendRising
	case slope < -0.5:
		return models.TrendFalling
	default:
		return models.TrendNeutral
	}
}

// percentile ranks the current reading against recent history. Neutral
// 50.0 until enough history accumulates.
func (d *Detector) percentile(vix float64) float64 {
	if len(d.vixHistory) < minPercentileSamples {
		return 50.0
	}

	window := d.vixHistory
	if len(window) > d.cfg.PercentileWindow {
		window = window[len(window)-d.cfg.PercentileWindow:]
	}

	below := 0
	for _, v := range window {
		if v <= vix {
			below++
		}
	}

	return math.Round(float64(below)/float64(len(window))*1000) / 10
}

func (d *Detector) recordClassification(regime models.RegimeType) {
	d.classifications = append(d.classifications, regime)
	if len(d.classifications) > d.cfg.HistoryCapacity {
		d.classifications = d.classifications[len(d.classifications)-d.cfg.HistoryCapacity:]
	}
}

func (d *Detector) recordVIX(vix float64) {
	d.vixHistory = append(d.vixHistory, vix)
	if len(d.vixHistory) > d.cfg.HistoryCapacity {
		d.vixHistory = d.vixHistory[len(d.vixHistory)-d.cfg.HistoryCapacity:]
	}
}

// DeriveParameters maps the current adaptation factor to the downstream
// knobs other components consume each cycle. Below 0.8 the confidence bar
// is raised and stops tighten with the factor.
func DeriveParameters(factor float64, now time.Time) models.AdaptiveParameters {
	params := models.AdaptiveParameters{
		AdaptationFactor:       factor,
		PositionSizeMultiplier: factor,
		StopLossTightening:     1.0,
		ProfitTargetAdjustment: round2(factor),
		UpdatedAt:              now,
	}

	if factor < 0.8 {
		params.ConfidenceThresholdAdjustment = 0.05
		params.StopLossTightening = round2(factor)
	}

	return params
}

// linearSlope returns the least-squares slope of values over their indices
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denom
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
