package signals

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cinar/indicator"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

const rsiPeriod = 14

// Volatility-regime signals carry a fixed confidence
const (
	expansionConfidence   = 0.7
	contractionConfidence = 0.65
)

// ModelPredictor is an optional external success-probability model. A nil
// trigger means no opinion for the symbol this cycle.
type ModelPredictor interface {
	Predict(ctx context.Context, symbol string) (*models.ModelTrigger, error)
}

// CycleInput is the cross-component state one generation cycle consumes.
// Nil fields mean the producing worker has not published yet (or its cache
// entry expired); the affected source is skipped, not failed.
type CycleInput struct {
	Divergences map[string]models.DivergenceAnalysis
	Regime      *models.RegimeState
	Params      *models.AdaptiveParameters
}

// Generator fuses correlation, momentum, volatility and model sources into
// a ranked, confidence-gated signal list
type Generator struct {
	cfg       *config.SignalsConfig
	histories *marketdata.HistorySet
	symbols   []string
	predictor ModelPredictor
}

// NewGenerator creates a signal generator. predictor may be nil.
func NewGenerator(cfg *config.SignalsConfig, histories *marketdata.HistorySet, symbols []string, predictor ModelPredictor) *Generator {
	return &Generator{
		cfg:       cfg,
		histories: histories,
		symbols:   symbols,
		predictor: predictor,
	}
}

// Generate runs one cycle: collect candidates from every source, gate them
// by the adaptive confidence threshold, rank, and cap per symbol
func (g *Generator) Generate(ctx context.Context, in CycleInput, now time.Time) []models.Signal {
	var candidates []models.Signal

	candidates = append(candidates, g.correlationSignals(in.Divergences, now)...)
	candidates = append(candidates, g.momentumSignals(now)...)
	candidates = append(candidates, g.volatilitySignals(in.Regime, now)...)
	candidates = append(candidates, g.modelSignals(ctx, now)...)

	threshold := g.cfg.MinConfidence
	if in.Params != nil {
		threshold += in.Params.ConfidenceThresholdAdjustment
	}

	accepted := make([]models.Signal, 0, len(candidates))
	for _, s := range candidates {
		if s.Confidence < threshold {
			continue
		}
		accepted = append(accepted, s)
	}

	rank(accepted)

	return g.capPerSymbol(accepted)
}

// correlationSignals emits breakdown and divergence signals for both legs
// of an affected pair
func (g *Generator) correlationSignals(divergences map[string]models.DivergenceAnalysis, now time.Time) []models.Signal {
	var out []models.Signal

	for _, analysis := range divergences {
		kind := models.KindCorrelationDivergence
		if analysis.IsBreakdown {
			kind = models.KindCorrelationBreakdown
		} else if analysis.Type != models.DivergenceExtreme && analysis.Type != models.DivergenceSignificant {
			continue
		}

		confidence := math.Min(0.95, analysis.Strength/5.0)

		for _, symbol := range []string{analysis.Pair.Base, analysis.Pair.Quote} {
			out = append(out, models.Signal{
				ID:         models.SignalID(kind, symbol, now),
				Symbol:     symbol,
				Kind:       kind,
				Strength:   models.StrengthFromConfidence(confidence),
				Confidence: confidence,
				Reasoning: []string{
					fmt.Sprintf("%s correlation %.3f vs baseline %.3f (z=%.2f, %s)",
						analysis.Pair.Key(), analysis.CurrentCorrelation,
						analysis.HistoricalMean, analysis.ZScore, analysis.Type),
				},
				Source: models.SignalSource{
					Correlation: &models.CorrelationTrigger{
						Pair:               analysis.Pair,
						CurrentCorrelation: analysis.CurrentCorrelation,
						ZScore:             analysis.ZScore,
						DivergenceType:     analysis.Type,
						IsBreakdown:        analysis.IsBreakdown,
					},
				},
				GeneratedAt: now,
			})
		}
	}

	return out
}

// momentumSignals emits directional signals when the recent move exceeds
// the momentum threshold, with RSI attached as context
func (g *Generator) momentumSignals(now time.Time) []models.Signal {
	var out []models.Signal

	for _, symbol := range g.symbols {
		hist := g.histories.Get(symbol)
		if hist == nil {
			continue
		}

		change, ok := hist.PercentChange(g.cfg.MomentumLookback)
		if !ok || math.Abs(change) <= g.cfg.MomentumThreshold*100 {
			continue
		}

		kind := models.KindMomentumLong
		if change < 0 {
			kind = models.KindMomentumShort
		}

		confidence := math.Min(math.Abs(change)/3.0, 0.8)

		trigger := &models.MomentumTrigger{
			PercentChange: change,
			Lookback:      g.cfg.MomentumLookback,
		}
		reasoning := []string{
			fmt.Sprintf("%s moved %+.2f%% over last %d samples", symbol, change, g.cfg.MomentumLookback),
		}

		if rsi, ok := latestRSI(hist.Prices()); ok {
			trigger.RSI = rsi
			reasoning = append(reasoning, fmt.Sprintf("RSI(%d)=%.1f", rsiPeriod, rsi))
		}

		out = append(out, models.Signal{
			ID:          models.SignalID(kind, symbol, now),
			Symbol:      symbol,
			Kind:        kind,
			Strength:    models.StrengthFromConfidence(confidence),
			Confidence:  confidence,
			Reasoning:   reasoning,
			Source:      models.SignalSource{Momentum: trigger},
			GeneratedAt: now,
		})
	}

	return out
}

// volatilitySignals emits one signal per tracked symbol when the regime
// just transitioned into a volatility extreme or back into calm
func (g *Generator) volatilitySignals(regime *models.RegimeState, now time.Time) []models.Signal {
	if regime == nil || !regime.RegimeChange {
		return nil
	}

	var kind models.SignalKind
	var confidence float64
	switch regime.Regime {
	case models.RegimeHighVolatility, models.RegimeExtremeVolatility:
		kind = models.KindVolatilityExpansion
		confidence = expansionConfidence
	case models.RegimeLowVolatility:
		kind = models.KindVolatilityContraction
		confidence = contractionConfidence
	default:
		return nil
	}

	out := make([]models.Signal, 0, len(g.symbols))
	for _, symbol := range g.symbols {
		out = append(out, models.Signal{
			ID:         models.SignalID(kind, symbol, now),
			Symbol:     symbol,
			Kind:       kind,
			Strength:   models.StrengthFromConfidence(confidence),
			Confidence: confidence,
			Reasoning: []string{
				fmt.Sprintf("regime changed to %s at VIX %.1f", regime.Regime, regime.VIXLevel),
			},
			Source: models.SignalSource{
				Volatility: &models.VolatilityTrigger{
					Regime:   regime.Regime,
					VIXLevel: regime.VIXLevel,
				},
			},
			GeneratedAt: now,
		})
	}

	return out
}

// modelSignals queries the external predictor per symbol. Predictor errors
// never abort the cycle.
func (g *Generator) modelSignals(ctx context.Context, now time.Time) []models.Signal {
	if g.predictor == nil {
		return nil
	}

	var out []models.Signal
	for _, symbol := range g.symbols {
		trigger, err := g.predictor.Predict(ctx, symbol)
		if err != nil {
			logger.Warn("model predictor failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}
		if trigger == nil || trigger.SuccessProbability <= g.cfg.ModelConfidenceThreshold {
			continue
		}

		reasoning := []string{
			fmt.Sprintf("model success probability %.2f", trigger.SuccessProbability),
		}
		if trigger.Rationale != "" {
			reasoning = append(reasoning, trigger.Rationale)
		}

		out = append(out, models.Signal{
			ID:          models.SignalID(models.KindModelPrediction, symbol, now),
			Symbol:      symbol,
			Kind:        models.KindModelPrediction,
			Strength:    models.StrengthFromConfidence(trigger.SuccessProbability),
			Confidence:  trigger.SuccessProbability,
			Reasoning:   reasoning,
			Source:      models.SignalSource{Model: trigger},
			GeneratedAt: now,
		})
	}

	return out
}

// capPerSymbol keeps at most MaxPerSymbol ranked signals per symbol
func (g *Generator) capPerSymbol(ranked []models.Signal) []models.Signal {
	counts := make(map[string]int, len(g.symbols))
	out := make([]models.Signal, 0, len(ranked))

	for _, s := range ranked {
		if counts[s.Symbol] >= g.cfg.MaxPerSymbol {
			continue
		}
		counts[s.Symbol]++
		out = append(out, s)
	}

	return out
}

// rank sorts by confidence desc, then strength rank desc
func rank(signals []models.Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Confidence != signals[j].Confidence {
			return signals[i].Confidence > signals[j].Confidence
		}
		return signals[i].Strength.Rank() > signals[j].Strength.Rank()
	})
}

// latestRSI computes the most recent RSI value over the price series
func latestRSI(prices []float64) (float64, bool) {
	if len(prices) <= rsiPeriod {
		return 0, false
	}

	_, rsi := indicator.Rsi(prices)
	if len(rsi) == 0 {
		return 0, false
	}

	return rsi[len(rsi)-1], true
}
