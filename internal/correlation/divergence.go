package correlation

import (
	"math"
	"time"

	"github.com/quantfold/odte-engine/pkg/models"
)

// Z-score bands for divergence classification
const (
	zExtreme     = 2.0
	zSignificant = 1.5
	zModerate    = 1.0
)

// Analyze classifies the current correlation against its rolling baseline.
// The breakdown check is independent of the z-score classification: an
// extreme divergence above the threshold is not a breakdown, and a slow
// drift below it is. Returns nil when the baseline is empty.
func Analyze(pair models.Pair, current float64, baseline []float64, breakdownThreshold float64, now time.Time) *models.DivergenceAnalysis {
	if len(baseline) == 0 {
		return nil
	}

	mean, std := meanStd(baseline)

	zScore := 0.0
	if std > 0 {
		zScore = (current - mean) / std
	}

	return &models.DivergenceAnalysis{
		Pair:               pair,
		CurrentCorrelation: current,
		HistoricalMean:     mean,
		HistoricalStd:      std,
		ZScore:             zScore,
		Type:               classifyZScore(zScore),
		IsBreakdown:        current < breakdownThreshold,
		Strength:           math.Abs(current-mean) / (std + 0.01),
		AnalyzedAt:         now,
	}
}

func classifyZScore(z float64) models.DivergenceType {
	abs := math.Abs(z)
	switch {
	case abs > zExtreme:
		return models.DivergenceExtreme
	case abs > zSignificant:
		return models.DivergenceSignificant
	case abs > zModerate:
		return models.DivergenceModerate
	default:
		return models.DivergenceNormal
	}
}
