package correlation

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// Engine maintains pairwise return correlations across the three nested
// lookback windows, plus the rolling-correlation baseline used for
// divergence analysis. The "current" correlation of a pair is its
// short-term window value.
type Engine struct {
	cfg       *config.CorrelationConfig
	histories *marketdata.HistorySet
	pairs     []models.Pair
}

// NewEngine creates a correlation engine over all pairs of the universe
func NewEngine(cfg *config.CorrelationConfig, histories *marketdata.HistorySet, symbols []string) *Engine {
	pairs := make([]models.Pair, 0, len(symbols)*(len(symbols)-1)/2)
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			pairs = append(pairs, models.Pair{Base: symbols[i], Quote: symbols[j]})
		}
	}

	return &Engine{
		cfg:       cfg,
		histories: histories,
		pairs:     pairs,
	}
}

// Pairs returns the tracked symbol pairs
func (e *Engine) Pairs() []models.Pair {
	return e.pairs
}

// ComputeMatrix recomputes correlation samples and divergence analyses for
// all pairs. A failure on one pair never aborts the others; pairs with
// insufficient data are skipped for this cycle.
func (e *Engine) ComputeMatrix(now time.Time) (map[string]models.CorrelationSample, map[string]models.DivergenceAnalysis) {
	matrix := make(map[string]models.CorrelationSample, len(e.pairs))
	divergences := make(map[string]models.DivergenceAnalysis, len(e.pairs))

	for _, pair := range e.pairs {
		sample, baseline, ok := e.computePair(pair, now)
		if !ok {
			continue
		}

		matrix[pair.Key()] = sample

		if len(baseline) < e.cfg.MinBaselineSamples {
			continue
		}

		analysis := Analyze(pair, sample.Current(), baseline, e.cfg.BreakdownThreshold, now)
		if analysis == nil {
			continue
		}
		analysis.PriceDivergence = e.priceDivergence(pair)
		divergences[pair.Key()] = *analysis
	}

	return matrix, divergences
}

// computePair computes one pair's correlation sample and its rolling
// baseline series. Returns ok=false on insufficient data.
func (e *Engine) computePair(pair models.Pair, now time.Time) (models.CorrelationSample, []float64, bool) {
	histBase := e.histories.Get(pair.Base)
	histQuote := e.histories.Get(pair.Quote)
	if histBase == nil || histQuote == nil {
		return models.CorrelationSample{}, nil, false
	}

	pricesBase := histBase.Prices()
	pricesQuote := histQuote.Prices()
	if len(pricesBase) < e.cfg.MinSamples || len(pricesQuote) < e.cfg.MinSamples {
		logger.Debug("insufficient data for pair",
			zap.String("pair", pair.Key()),
			zap.Int("base_samples", len(pricesBase)),
			zap.Int("quote_samples", len(pricesQuote)),
		)
		return models.CorrelationSample{}, nil, false
	}

	// Align series to the most recent common length
	minLen := len(pricesBase)
	if len(pricesQuote) < minLen {
		minLen = len(pricesQuote)
	}
	pricesBase = pricesBase[len(pricesBase)-minLen:]
	pricesQuote = pricesQuote[len(pricesQuote)-minLen:]

	sample := models.CorrelationSample{
		Pair:         pair,
		ShortTerm:    windowCorrelation(pricesBase, pricesQuote, e.cfg.ShortWindow),
		MediumTerm:   windowCorrelation(pricesBase, pricesQuote, e.cfg.MediumWindow),
		LongTerm:     windowCorrelation(pricesBase, pricesQuote, e.cfg.LongWindow),
		SampleSize:   minLen,
		CalculatedAt: now,
	}

	baseline := rollingCorrelations(pricesBase, pricesQuote, e.cfg.RollingWindow)
	sample.RollingMean, sample.RollingStd = meanStd(baseline)

	return sample, baseline, true
}

// priceDivergence is the absolute difference of the two symbols'
// percentage price changes over the last 10 samples
func (e *Engine) priceDivergence(pair models.Pair) float64 {
	const lookback = 10

	histBase := e.histories.Get(pair.Base)
	histQuote := e.histories.Get(pair.Quote)
	if histBase == nil || histQuote == nil {
		return 0
	}

	changeBase, okBase := histBase.PercentChange(lookback)
	changeQuote, okQuote := histQuote.PercentChange(lookback)
	if !okBase || !okQuote {
		return 0
	}

	return math.Abs(changeBase - changeQuote)
}

// windowCorrelation computes Pearson's r over the most recent window
// samples. Windows longer than the series use the whole series.
func windowCorrelation(pricesBase, pricesQuote []float64, window int) float64 {
	n := len(pricesBase)
	if window+1 < n {
		pricesBase = pricesBase[n-window-1:]
		pricesQuote = pricesQuote[n-window-1:]
	}

	return Pearson(toReturns(pricesBase), toReturns(pricesQuote))
}

// rollingCorrelations slides a fixed window across the full series,
// computing one correlation per position, to build the baseline
// distribution for divergence analysis
func rollingCorrelations(pricesBase, pricesQuote []float64, window int) []float64 {
	if len(pricesBase) < window+1 {
		return nil
	}

	out := make([]float64, 0, len(pricesBase)-window)
	for i := 0; i+window < len(pricesBase); i++ {
		r := Pearson(
			toReturns(pricesBase[i:i+window+1]),
			toReturns(pricesQuote[i:i+window+1]),
		)
		out = append(out, r)
	}
	return out
}

// toReturns converts a price series to simple returns
func toReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			returns[i-1] = 0
			continue
		}
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return returns
}

// Pearson computes the Pearson correlation coefficient of two equal-length
// return series. Degenerate inputs (length mismatch, zero variance) are
// normalized to 0.0 so a constant-price window never poisons a cycle.
func Pearson(returnsBase, returnsQuote []float64) float64 {
	if len(returnsBase) != len(returnsQuote) || len(returnsBase) == 0 {
		return 0
	}

	n := float64(len(returnsBase))

	var sumBase, sumQuote float64
	for i := range returnsBase {
		sumBase += returnsBase[i]
		sumQuote += returnsQuote[i]
	}
	meanBase := sumBase / n
	meanQuote := sumQuote / n

	var numerator, varBase, varQuote float64
	for i := range returnsBase {
		diffBase := returnsBase[i] - meanBase
		diffQuote := returnsQuote[i] - meanQuote
		numerator += diffBase * diffQuote
		varBase += diffBase * diffBase
		varQuote += diffQuote * diffQuote
	}

	if varBase == 0 || varQuote == 0 {
		return 0
	}

	r := numerator / math.Sqrt(varBase*varQuote)
	if math.IsNaN(r) {
		return 0
	}

	// Guard against floating-point drift outside [-1, 1]
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// meanStd returns mean and population standard deviation
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}
