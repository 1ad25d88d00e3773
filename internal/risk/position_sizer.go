package risk

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// Sizer converts a signal confidence plus market conditions into a bounded
// dollar position size. Protective model: the configured minimum position
// size is the floor, confidence and conditions only scale upward from it,
// up to the multiplier cap.
type Sizer struct {
	mu     sync.RWMutex
	limits Limits
}

// NewSizer creates a position sizer
func NewSizer(limits Limits) *Sizer {
	return &Sizer{limits: limits}
}

// Limits returns the current limits
func (s *Sizer) Limits() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// UpdateLimits swaps in operator-provided limits
func (s *Sizer) UpdateLimits(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()

	logger.Info("risk limits updated",
		zap.String("min_position", limits.MinPositionSize.String()),
		zap.String("max_position", limits.MaxPositionSize.String()),
		zap.String("max_exposure", limits.MaxPortfolioExposure.String()),
	)
	return nil
}

// Calculate returns the position size for a signal, or zero when trading
// is halted or the exposure envelope has no room for a minimum-size
// position. Zero always means "do not trade".
func (s *Sizer) Calculate(confidence float64, cond models.MarketConditions, halted bool) decimal.Decimal {
	if halted {
		logger.Warn("position sizing short-circuited: emergency halt active")
		return decimal.Zero
	}

	s.mu.RLock()
	limits := s.limits
	s.mu.RUnlock()

	multiplier := vixAdjustment(cond.VIXLevel) *
		confidenceAdjustment(confidence) *
		correlationAdjustment(cond.CorrelationRisk) *
		exposureAdjustment(cond.PortfolioExposure, limits.MaxPortfolioExposure)

	// Protective floor: never scale below 1x the minimum
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	if multiplier > limits.MaxSizeMultiplier {
		multiplier = limits.MaxSizeMultiplier
	}

	size := limits.MinPositionSize.Mul(decimal.NewFromFloat(multiplier))
	if size.GreaterThan(limits.MaxPositionSize) {
		size = limits.MaxPositionSize
	}

	return s.validate(size, cond.PortfolioExposure, limits)
}

// validate is the final authoritative exposure check: shrink to remaining
// headroom, reject entirely if the headroom cannot fit a minimum position
func (s *Sizer) validate(size, currentExposure decimal.Decimal, limits Limits) decimal.Decimal {
	headroom := limits.MaxPortfolioExposure.Sub(currentExposure)

	if headroom.LessThan(limits.MinPositionSize) {
		logger.Warn("position rejected: insufficient exposure headroom",
			zap.String("headroom", headroom.String()),
			zap.String("min_position", limits.MinPositionSize.String()),
		)
		return decimal.Zero
	}

	if size.GreaterThan(headroom) {
		logger.Info("position reduced to exposure headroom",
			zap.String("proposed", size.String()),
			zap.String("headroom", headroom.String()),
		)
		return headroom
	}

	return size
}

// vixAdjustment maps the VIX level to a size multiplier using the regime
// bands, with an elevated band inside normal
func vixAdjustment(vix float64) float64 {
	switch {
	case vix <= 0:
		return 1.0 // unknown
	case vix >= 35:
		return 0.5
	case vix >= 25:
		return 0.7
	case vix >= 20:
		return 0.9
	case vix < 15:
		return 1.1
	default:
		return 1.0
	}
}

// confidenceAdjustment scales from the floor upward; low confidence never
// shrinks below 1x
func confidenceAdjustment(confidence float64) float64 {
	switch {
	case confidence >= 0.9:
		return 2.0
	case confidence >= 0.8:
		return 1.5
	case confidence >= 0.7:
		return 1.25
	default:
		return 1.0
	}
}

// correlationAdjustment shrinks size when the book is concentrated and
// grants a small diversification bonus when it is not
func correlationAdjustment(risk float64) float64 {
	switch {
	case risk > 0.8:
		return 0.6
	case risk > 0.7:
		return 0.8
	case risk > 0.5:
		return 1.0
	default:
		return 1.1
	}
}

// exposureAdjustment tapers size as the book approaches the exposure
// envelope
func exposureAdjustment(current, max decimal.Decimal) float64 {
	if max.LessThanOrEqual(decimal.Zero) {
		return 1.0
	}

	ratio, _ := current.Div(max).Float64()
	switch {
	case ratio > 0.8:
		return 0.5
	case ratio > 0.6:
		return 0.7
	case ratio > 0.4:
		return 0.9
	default:
		return 1.0
	}
}
