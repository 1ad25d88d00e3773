package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/engine"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/internal/risk"
	"github.com/quantfold/odte-engine/internal/takeprofit"
	"github.com/quantfold/odte-engine/pkg/logger"
)

// ExecutionWorker turns accepted signals into tracked positions and walks
// their take-profit tiers. Sizing consults the halt state, so a halted
// engine opens nothing while existing positions keep unwinding.
type ExecutionWorker struct {
	eng          *engine.Engine
	histories    *marketdata.HistorySet
	maxPerSymbol int

	mu   sync.Mutex
	open map[string][]*takeprofit.Position
}

// NewExecutionWorker creates an execution worker
func NewExecutionWorker(eng *engine.Engine, histories *marketdata.HistorySet, cfg *config.RiskConfig) *ExecutionWorker {
	return &ExecutionWorker{
		eng:          eng,
		histories:    histories,
		maxPerSymbol: cfg.MaxPerSymbolPositions,
		open:         make(map[string][]*takeprofit.Position),
	}
}

// Name returns worker name
func (w *ExecutionWorker) Name() string {
	return "execution_worker"
}

// Run executes one cycle: unwind tiers first, then act on fresh signals
func (w *ExecutionWorker) Run(ctx context.Context) error {
	now := time.Now()

	w.evaluateOpenPositions(now)

	active, err := w.eng.GetActiveSignals(ctx)
	if err != nil {
		return err
	}

	for _, s := range active {
		hist := w.histories.Get(s.Symbol)
		if hist == nil {
			continue
		}
		last, ok := hist.Last()
		if !ok {
			continue
		}

		w.mu.Lock()
		atLimit := len(w.open[s.Symbol]) >= w.maxPerSymbol
		w.mu.Unlock()
		if atLimit {
			continue
		}

		size := w.eng.CalculatePositionSize(ctx, s.Confidence)
		if size.IsZero() {
			continue
		}

		pos := w.eng.OpenPosition(s.Symbol, last.Price, size, risk.Greeks{}, now)

		w.mu.Lock()
		w.open[s.Symbol] = append(w.open[s.Symbol], pos)
		w.mu.Unlock()

		logger.Info("signal executed",
			zap.String("signal", s.ID),
			zap.String("symbol", s.Symbol),
			zap.String("kind", string(s.Kind)),
			zap.String("size", size.String()),
		)
	}

	return nil
}

// evaluateOpenPositions checks every open position's tiers at the latest
// price and drops fully closed positions
func (w *ExecutionWorker) evaluateOpenPositions(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for symbol, positions := range w.open {
		hist := w.histories.Get(symbol)
		if hist == nil {
			continue
		}
		last, ok := hist.Last()
		if !ok {
			continue
		}

		remaining := positions[:0]
		for _, pos := range positions {
			w.eng.CheckTakeProfit(pos, last.Price, now)
			if !pos.Closed() {
				remaining = append(remaining, pos)
			}
		}

		if len(remaining) == 0 {
			delete(w.open, symbol)
		} else {
			w.open[symbol] = remaining
		}
	}
}
