package workers

import (
	"context"
	"time"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/internal/risk"
	"github.com/quantfold/odte-engine/pkg/logger"
)

// RiskWorker runs the emergency-condition check and the continuous
// monitors each cycle, then publishes the risk metrics and the halt flag.
// The halt key carries no TTL: it must never silently expire.
type RiskWorker struct {
	monitor   *risk.Monitor
	portfolio *risk.Portfolio
	histories *marketdata.HistorySet
	store     cache.Store
	vixSymbol string
	ttl       time.Duration
}

// NewRiskWorker creates a risk worker
func NewRiskWorker(monitor *risk.Monitor, portfolio *risk.Portfolio, histories *marketdata.HistorySet, store cache.Store, cfg *config.RiskConfig, vixSymbol string) *RiskWorker {
	return &RiskWorker{
		monitor:   monitor,
		portfolio: portfolio,
		histories: histories,
		store:     store,
		vixSymbol: vixSymbol,
		ttl:       2 * cfg.MonitorInterval,
	}
}

// Name returns worker name
func (w *RiskWorker) Name() string {
	return "risk_worker"
}

// Run executes one risk monitoring cycle
func (w *RiskWorker) Run(ctx context.Context) error {
	now := time.Now()

	vix := 0.0
	if hist := w.histories.Get(w.vixSymbol); hist != nil {
		if last, ok := hist.Last(); ok {
			vix = last.Price
		}
	}

	dataAge := time.Duration(0)
	if lastUpdate := w.histories.LastUpdate(); !lastUpdate.IsZero() {
		dataAge = now.Sub(lastUpdate)
	}

	snap := w.portfolio.Snapshot(vix, dataAge)

	w.monitor.CheckEmergencyConditions(ctx, snap)
	w.monitor.RunChecks(ctx, snap)

	if err := w.store.Set(ctx, cache.KeyRiskMetrics, w.monitor.Status(), w.ttl); err != nil {
		return err
	}
	if err := w.store.Set(ctx, cache.KeyEmergencyHalt, w.monitor.HaltState(), 0); err != nil {
		return err
	}

	logger.Debug("risk metrics published")
	return nil
}
