package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/internal/risk"
	"github.com/quantfold/odte-engine/internal/takeprofit"
	"github.com/quantfold/odte-engine/pkg/logger"
	"github.com/quantfold/odte-engine/pkg/models"
)

// Engine is the operator-facing facade over the analytics and risk
// components. The periodic workers produce state; the facade answers
// point-in-time questions against it.
type Engine struct {
	cfg        *config.Config
	store      cache.Store
	histories  *marketdata.HistorySet
	sizer      *risk.Sizer
	monitor    *risk.Monitor
	portfolio  *risk.Portfolio
	takeprofit *takeprofit.Strategy
}

// New creates the engine facade
func New(cfg *config.Config, store cache.Store, histories *marketdata.HistorySet, sizer *risk.Sizer, monitor *risk.Monitor, portfolio *risk.Portfolio, tp *takeprofit.Strategy) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      store,
		histories:  histories,
		sizer:      sizer,
		monitor:    monitor,
		portfolio:  portfolio,
		takeprofit: tp,
	}
}

// CalculatePositionSize sizes a trade for the given signal confidence
// under current market conditions. Zero means "do not trade"; the halt
// state is consulted directly, never through the cache.
func (e *Engine) CalculatePositionSize(ctx context.Context, confidence float64) decimal.Decimal {
	halted, _ := e.monitor.Halted()
	return e.sizer.Calculate(confidence, e.marketConditions(ctx), halted)
}

// CheckEmergencyConditions runs the halt triggers against a fresh
// portfolio snapshot and returns whether trading is halted
func (e *Engine) CheckEmergencyConditions(ctx context.Context) bool {
	return e.monitor.CheckEmergencyConditions(ctx, e.snapshot())
}

// ClearEmergencyHalt lifts the halt with an operator reason. Returns
// false when trading was not halted.
func (e *Engine) ClearEmergencyHalt(ctx context.Context, reason string) bool {
	return e.monitor.ClearHalt(ctx, reason)
}

// GetActiveSignals returns the current ranked signal list. An absent or
// expired cache entry yields an empty list.
func (e *Engine) GetActiveSignals(ctx context.Context) ([]models.Signal, error) {
	var active []models.Signal
	err := e.store.Get(ctx, cache.KeyActiveSignals, &active)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return active, nil
}

// GetCurrentRiskStatus returns the live risk state
func (e *Engine) GetCurrentRiskStatus() risk.Status {
	return e.monitor.Status()
}

// UpdateRiskLimits applies operator-provided limits after validation
func (e *Engine) UpdateRiskLimits(limits risk.Limits) error {
	return e.sizer.UpdateLimits(limits)
}

// OpenPosition registers a filled position for take-profit tracking and
// exposure accounting
func (e *Engine) OpenPosition(symbol string, entryPrice float64, size decimal.Decimal, greeks risk.Greeks, entryTime time.Time) *takeprofit.Position {
	pos := e.takeprofit.OpenPosition(symbol, entryPrice, size, entryTime)

	e.portfolio.Open(risk.OpenPosition{
		ID:       pos.ID,
		Symbol:   symbol,
		Size:     size,
		Greeks:   greeks,
		OpenedAt: entryTime,
	})

	logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", symbol),
		zap.Float64("entry_price", entryPrice),
		zap.String("size", size.String()),
	)
	return pos
}

// CheckTakeProfit evaluates a position's tiers at the current price and
// books any partial close into the portfolio
func (e *Engine) CheckTakeProfit(pos *takeprofit.Position, currentPrice float64, now time.Time) *takeprofit.Execution {
	exec := e.takeprofit.CheckTakeProfit(pos, currentPrice, now)
	if exec == nil {
		return nil
	}

	pnl := exec.SizeToClose.
		Mul(decimal.NewFromFloat(exec.ProfitPct))
	if err := e.portfolio.Reduce(pos.ID, exec.SizeToClose, pnl); err != nil {
		logger.Error("failed to book partial close",
			zap.String("position", pos.ID),
			zap.Error(err),
		)
	}

	return exec
}

// marketConditions assembles the sizing inputs from the history buffers,
// the cached correlation matrix, and the portfolio book
func (e *Engine) marketConditions(ctx context.Context) models.MarketConditions {
	cond := models.MarketConditions{
		PortfolioExposure: e.portfolio.TotalExposure(),
	}

	if hist := e.histories.Get(e.cfg.Universe.VIXSymbol); hist != nil {
		if last, ok := hist.Last(); ok {
			cond.VIXLevel = last.Price
		}
	}

	if lastUpdate := e.histories.LastUpdate(); !lastUpdate.IsZero() {
		cond.DataAge = time.Since(lastUpdate)
	}

	var matrix map[string]models.CorrelationSample
	if err := e.store.Get(ctx, cache.KeyCorrelationMatrix, &matrix); err == nil {
		cond.CorrelationRisk = concentrationRisk(matrix)
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("failed to read correlation matrix", zap.Error(err))
	}

	return cond
}

// snapshot builds the monitor input from the portfolio and market data
func (e *Engine) snapshot() risk.PortfolioSnapshot {
	vix := 0.0
	if hist := e.histories.Get(e.cfg.Universe.VIXSymbol); hist != nil {
		if last, ok := hist.Last(); ok {
			vix = last.Price
		}
	}

	dataAge := time.Duration(0)
	if lastUpdate := e.histories.LastUpdate(); !lastUpdate.IsZero() {
		dataAge = time.Since(lastUpdate)
	}

	return e.portfolio.Snapshot(vix, dataAge)
}

// concentrationRisk is the highest absolute pairwise correlation: the
// book is only as diversified as its most entangled pair
func concentrationRisk(matrix map[string]models.CorrelationSample) float64 {
	max := 0.0
	for _, sample := range matrix {
		if abs := math.Abs(sample.Current()); abs > max {
			max = abs
		}
	}
	return max
}
