package workers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/signals"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// SignalWorker fuses the cached analytics into the active signal list. A
// missing cache key disables the affected source for the cycle; the cycle
// itself never fails on staleness.
type SignalWorker struct {
	generator *signals.Generator
	store     cache.Store
	validity  time.Duration
}

// NewSignalWorker creates a signal worker
func NewSignalWorker(generator *signals.Generator, store cache.Store, cfg *config.SignalsConfig) *SignalWorker {
	return &SignalWorker{
		generator: generator,
		store:     store,
		validity:  cfg.ValidityWindow,
	}
}

// Name returns worker name
func (w *SignalWorker) Name() string {
	return "signal_worker"
}

// Run executes one signal generation cycle
func (w *SignalWorker) Run(ctx context.Context) error {
	in := signals.CycleInput{}

	var divergences map[string]models.DivergenceAnalysis
	if err := w.store.Get(ctx, cache.KeyDivergenceMap, &divergences); err == nil {
		in.Divergences = divergences
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("failed to read divergence map", zap.Error(err))
	}

	var regimeState models.RegimeState
	if err := w.store.Get(ctx, cache.KeyRegimeState, &regimeState); err == nil {
		in.Regime = &regimeState
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("failed to read regime state", zap.Error(err))
	}

	var params models.AdaptiveParameters
	if err := w.store.Get(ctx, cache.KeyAdaptiveParams, &params); err == nil {
		in.Params = &params
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("failed to read adaptive parameters", zap.Error(err))
	}

	active := w.generator.Generate(ctx, in, time.Now())

	if err := w.store.Set(ctx, cache.KeyActiveSignals, active, w.validity); err != nil {
		return err
	}

	if len(active) > 0 {
		logger.Info("active signals published", zap.Int("count", len(active)))
	}
	return nil
}
