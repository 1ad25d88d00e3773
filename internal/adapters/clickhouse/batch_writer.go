package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// BatchWriter buffers analytics records and flushes them in batches so the
// computation workers never block on the sink.
type BatchWriter struct {
	repo     *Repository
	mu       sync.Mutex
	samples  []models.CorrelationSample
	regimes  []models.RegimeState
	maxBatch int
	ticker   *time.Ticker
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBatchWriter creates a batch writer flushing every maxWait or when a
// buffer reaches maxBatch records
func NewBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *BatchWriter {
	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		repo:     repo,
		samples:  make([]models.CorrelationSample, 0, maxBatch),
		regimes:  make([]models.RegimeState, 0, maxBatch),
		maxBatch: maxBatch,
		ticker:   time.NewTicker(maxWait),
		ctx:      ctx,
		cancel:   cancel,
	}

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// AddCorrelationSample buffers a correlation sample
func (bw *BatchWriter) AddCorrelationSample(sample models.CorrelationSample) {
	bw.mu.Lock()
	bw.samples = append(bw.samples, sample)
	full := len(bw.samples) >= bw.maxBatch
	bw.mu.Unlock()

	if full {
		bw.flush()
	}
}

// AddRegimeState buffers a regime state
func (bw *BatchWriter) AddRegimeState(state models.RegimeState) {
	bw.mu.Lock()
	bw.regimes = append(bw.regimes, state)
	full := len(bw.regimes) >= bw.maxBatch
	bw.mu.Unlock()

	if full {
		bw.flush()
	}
}

func (bw *BatchWriter) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.ticker.C:
			bw.flush()
		case <-bw.ctx.Done():
			// Final flush before exit
			bw.flush()
			return
		}
	}
}

func (bw *BatchWriter) flush() {
	bw.mu.Lock()
	samples := bw.samples
	regimes := bw.regimes
	bw.samples = make([]models.CorrelationSample, 0, bw.maxBatch)
	bw.regimes = make([]models.RegimeState, 0, bw.maxBatch)
	bw.mu.Unlock()

	if len(samples) == 0 && len(regimes) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bw.repo.SaveCorrelationSamples(ctx, samples); err != nil {
		logger.Error("failed to flush correlation samples",
			zap.Int("records", len(samples)),
			zap.Error(err),
		)
	}

	if err := bw.repo.SaveRegimeStates(ctx, regimes); err != nil {
		logger.Error("failed to flush regime states",
			zap.Int("records", len(regimes)),
			zap.Error(err),
		)
	}
}

// Close stops the writer and flushes remaining data
func (bw *BatchWriter) Close() error {
	bw.ticker.Stop()
	bw.cancel()
	bw.wg.Wait()
	return nil
}
