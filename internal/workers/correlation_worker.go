package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/clickhouse"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/correlation"
	"github.com/quantfold/odte-engine/pkg/logger"
)

// CorrelationWorker recomputes the correlation matrix and divergence map
// each cycle and publishes them with a TTL of twice the refresh interval
type CorrelationWorker struct {
	engine *correlation.Engine
	store  cache.Store
	ttl    time.Duration
	sink   *clickhouse.BatchWriter
}

// NewCorrelationWorker creates a correlation worker. sink may be nil.
func NewCorrelationWorker(engine *correlation.Engine, store cache.Store, cfg *config.CorrelationConfig, sink *clickhouse.BatchWriter) *CorrelationWorker {
	return &CorrelationWorker{
		engine: engine,
		store:  store,
		ttl:    2 * cfg.RefreshInterval,
		sink:   sink,
	}
}

// Name returns worker name
func (w *CorrelationWorker) Name() string {
	return "correlation_worker"
}

// Run executes one correlation cycle
func (w *CorrelationWorker) Run(ctx context.Context) error {
	now := time.Now()
	matrix, divergences := w.engine.ComputeMatrix(now)

	if len(matrix) == 0 {
		logger.Debug("correlation cycle skipped: no computable pairs")
		return nil
	}

	if err := w.store.Set(ctx, cache.KeyCorrelationMatrix, matrix, w.ttl); err != nil {
		return err
	}
	if err := w.store.Set(ctx, cache.KeyDivergenceMap, divergences, w.ttl); err != nil {
		return err
	}

	if w.sink != nil {
		for _, sample := range matrix {
			w.sink.AddCorrelationSample(sample)
		}
	}

	logger.Debug("correlation matrix published",
		zap.Int("pairs", len(matrix)),
		zap.Int("divergences", len(divergences)),
	)
	return nil
}
