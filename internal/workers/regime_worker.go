package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/clickhouse"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/internal/regime"
	"github.com/quantfold/odte-engine/pkg/logger"
)

// RegimeWorker runs one regime detection cycle per tick and publishes the
// regime state plus the derived adaptive parameters
type RegimeWorker struct {
	detector  *regime.Detector
	histories *marketdata.HistorySet
	store     cache.Store
	vixSymbol string
	stateTTL  time.Duration
	sink      *clickhouse.BatchWriter
}

// NewRegimeWorker creates a regime worker. sink may be nil.
func NewRegimeWorker(detector *regime.Detector, histories *marketdata.HistorySet, store cache.Store, cfg *config.RegimeConfig, vixSymbol string, sink *clickhouse.BatchWriter) *RegimeWorker {
	return &RegimeWorker{
		detector:  detector,
		histories: histories,
		store:     store,
		vixSymbol: vixSymbol,
		stateTTL:  cfg.StateTTL,
		sink:      sink,
	}
}

// Name returns worker name
func (w *RegimeWorker) Name() string {
	return "regime_worker"
}

// Run executes one regime detection cycle
func (w *RegimeWorker) Run(ctx context.Context) error {
	hist := w.histories.Get(w.vixSymbol)
	if hist == nil {
		logger.Debug("regime cycle skipped: no VIX data yet")
		return nil
	}
	last, ok := hist.Last()
	if !ok {
		logger.Debug("regime cycle skipped: no VIX data yet")
		return nil
	}

	now := time.Now()
	state := w.detector.Observe(last.Price, now)
	params := regime.DeriveParameters(state.AdaptationFactor, now)

	if err := w.store.Set(ctx, cache.KeyRegimeState, state, w.stateTTL); err != nil {
		return err
	}
	if err := w.store.Set(ctx, cache.KeyAdaptiveParams, params, w.stateTTL); err != nil {
		return err
	}

	if w.sink != nil {
		w.sink.AddRegimeState(state)
	}

	if state.RegimeChange {
		logger.Info("volatility regime changed",
			zap.String("regime", string(state.Regime)),
			zap.Float64("vix", state.VIXLevel),
			zap.Float64("adaptation_factor", state.AdaptationFactor),
		)
	} else {
		logger.Debug("regime state published",
			zap.String("regime", string(state.Regime)),
			zap.Float64("vix", state.VIXLevel),
		)
	}
	return nil
}
