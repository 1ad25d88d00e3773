package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/pkg/logger"
)

// Alerter pushes severity-tagged alerts to the operator channel
type Alerter interface {
	AlertEmergencyHalt(reason string) error
	AlertHaltCleared(reason string) error
	AlertRiskLimit(severity, message string) error
}

// EventRecorder persists risk events for the audit trail
type EventRecorder interface {
	RecordEvent(ctx context.Context, event RiskEvent) error
}

// Monitor owns the emergency-halt state machine and the continuous
// portfolio checks. The halt is sticky: once set it survives until an
// explicit operator clear, and re-triggering while halted only logs.
type Monitor struct {
	sizer            *Sizer
	stalenessTimeout time.Duration
	warningPercent   float64
	alerter          Alerter
	recorder         EventRecorder

	mu           sync.Mutex
	halted       bool
	haltReason   string
	haltedAt     time.Time
	lastSnapshot PortfolioSnapshot
	lastChecked  time.Time
}

// NewMonitor creates a risk monitor. alerter and recorder may be nil.
func NewMonitor(sizer *Sizer, stalenessTimeout time.Duration, warningPercent float64, alerter Alerter, recorder EventRecorder) *Monitor {
	return &Monitor{
		sizer:            sizer,
		stalenessTimeout: stalenessTimeout,
		warningPercent:   warningPercent,
		alerter:          alerter,
		recorder:         recorder,
	}
}

// Halted reports the current halt state and its reason
func (m *Monitor) Halted() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted, m.haltReason
}

// CheckEmergencyConditions evaluates all halt triggers against the
// snapshot and returns whether trading is halted afterwards. Idempotent:
// a breach while already halted is a no-op besides logging.
func (m *Monitor) CheckEmergencyConditions(ctx context.Context, snap PortfolioSnapshot) bool {
	limits := m.sizer.Limits()

	reason := ""
	switch {
	case snap.DailyPnL.LessThanOrEqual(limits.EmergencyHaltLoss.Neg()):
		reason = fmt.Sprintf("daily loss %s breached emergency limit %s",
			snap.DailyPnL.StringFixed(2), limits.EmergencyHaltLoss.StringFixed(2))
	case snap.VIXLevel >= limits.MaxVIXThreshold:
		reason = fmt.Sprintf("VIX %.1f at or above halt threshold %.1f",
			snap.VIXLevel, limits.MaxVIXThreshold)
	case m.exposureBlown(snap, limits):
		reason = fmt.Sprintf("total exposure %s above 150%% of per-position envelope",
			snap.TotalExposure.StringFixed(2))
	case m.stalenessTimeout > 0 && snap.DataAge > m.stalenessTimeout:
		reason = fmt.Sprintf("market data stale for %s", snap.DataAge.Round(time.Second))
	}

	m.mu.Lock()
	m.lastSnapshot = snap
	m.lastChecked = time.Now()

	if reason == "" {
		halted := m.halted
		m.mu.Unlock()
		return halted
	}

	if m.halted {
		m.mu.Unlock()
		logger.Warn("emergency condition persists while halted", zap.String("reason", reason))
		return true
	}

	m.halted = true
	m.haltReason = reason
	m.haltedAt = time.Now()
	m.mu.Unlock()

	logger.Error("EMERGENCY HALT triggered", zap.String("reason", reason))
	m.record(ctx, EventEmergencyHalt, SeverityCritical, reason, snap)
	if m.alerter != nil {
		if err := m.alerter.AlertEmergencyHalt(reason); err != nil {
			logger.Error("failed to send halt alert", zap.Error(err))
		}
	}

	return true
}

// ClearHalt resets the halt state with an operator-provided reason.
// Returns false when there was nothing to clear.
func (m *Monitor) ClearHalt(ctx context.Context, reason string) bool {
	m.mu.Lock()
	if !m.halted {
		m.mu.Unlock()
		return false
	}
	m.halted = false
	m.haltReason = ""
	m.haltedAt = time.Time{}
	m.mu.Unlock()

	logger.Info("emergency halt cleared", zap.String("reason", reason))
	m.record(ctx, EventHaltCleared, SeverityInfo, reason, PortfolioSnapshot{})
	if m.alerter != nil {
		if err := m.alerter.AlertHaltCleared(reason); err != nil {
			logger.Error("failed to send halt-cleared alert", zap.Error(err))
		}
	}

	return true
}

// RunChecks runs the continuous non-halting monitors: daily-loss warning,
// Greeks, position counts, and market-condition alerts
func (m *Monitor) RunChecks(ctx context.Context, snap PortfolioSnapshot) {
	limits := m.sizer.Limits()

	m.checkDailyLoss(ctx, snap, limits)
	m.checkGreeks(ctx, snap, limits)
	m.checkPositionCounts(ctx, snap, limits)
	m.checkMarketConditions(ctx, snap, limits)
}

// HaltState returns the publishable halt flag
func (m *Monitor) HaltState() HaltState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return HaltState{
		Active:   m.halted,
		Reason:   m.haltReason,
		HaltedAt: m.haltedAt,
	}
}

// Status returns the publishable risk state
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		EmergencyHaltActive: m.halted,
		HaltReason:          m.haltReason,
		HaltedAt:            m.haltedAt,
		DailyPnL:            m.lastSnapshot.DailyPnL,
		TotalExposure:       m.lastSnapshot.TotalExposure,
		PositionCount:       m.lastSnapshot.PositionCount,
		CheckedAt:           m.lastChecked,
	}
}

func (m *Monitor) exposureBlown(snap PortfolioSnapshot, limits Limits) bool {
	if snap.PositionCount == 0 {
		return false
	}

	envelope := limits.MaxPositionSize.
		Mul(decimal.NewFromInt(int64(snap.PositionCount))).
		Mul(decimal.NewFromFloat(1.5))
	return snap.TotalExposure.GreaterThanOrEqual(envelope)
}

func (m *Monitor) checkDailyLoss(ctx context.Context, snap PortfolioSnapshot, limits Limits) {
	if snap.DailyPnL.GreaterThanOrEqual(decimal.Zero) {
		return
	}

	loss := snap.DailyPnL.Neg()
	warnAt := limits.MaxDailyLoss.Mul(decimal.NewFromFloat(m.warningPercent / 100))

	if loss.GreaterThanOrEqual(limits.MaxDailyLoss) {
		m.alert(ctx, EventDailyLossWarn, SeverityCritical,
			fmt.Sprintf("daily loss %s breached limit %s", loss.StringFixed(2), limits.MaxDailyLoss.StringFixed(2)), snap)
	} else if loss.GreaterThanOrEqual(warnAt) {
		m.alert(ctx, EventDailyLossWarn, SeverityWarning,
			fmt.Sprintf("daily loss %s at %.0f%% of limit %s", loss.StringFixed(2), m.warningPercent, limits.MaxDailyLoss.StringFixed(2)), snap)
	}
}

func (m *Monitor) checkGreeks(ctx context.Context, snap PortfolioSnapshot, limits Limits) {
	type breach struct {
		name  string
		value float64
		limit float64
	}
	var breaches []breach

	if math.Abs(snap.Greeks.Delta) > limits.MaxPortfolioDelta {
		breaches = append(breaches, breach{"delta", snap.Greeks.Delta, limits.MaxPortfolioDelta})
	}
	if math.Abs(snap.Greeks.Gamma) > limits.MaxPortfolioGamma {
		breaches = append(breaches, breach{"gamma", snap.Greeks.Gamma, limits.MaxPortfolioGamma})
	}
	if math.Abs(snap.Greeks.Vega) > limits.MaxPortfolioVega {
		breaches = append(breaches, breach{"vega", snap.Greeks.Vega, limits.MaxPortfolioVega})
	}

	for _, b := range breaches {
		m.alert(ctx, EventGreeksBreach, SeverityWarning,
			fmt.Sprintf("portfolio %s %.1f exceeds limit %.1f", b.name, b.value, b.limit), snap)
	}
}

func (m *Monitor) checkPositionCounts(ctx context.Context, snap PortfolioSnapshot, limits Limits) {
	if snap.PositionCount > limits.MaxTotalPositions {
		m.alert(ctx, EventPositionLimits, SeverityWarning,
			fmt.Sprintf("%d open positions exceed limit %d", snap.PositionCount, limits.MaxTotalPositions), snap)
	}

	for symbol, count := range snap.PerSymbolCounts {
		if count > limits.MaxPerSymbolPositions {
			m.alert(ctx, EventPositionLimits, SeverityWarning,
				fmt.Sprintf("%s has %d open positions, limit %d", symbol, count, limits.MaxPerSymbolPositions), snap)
		}
	}
}

func (m *Monitor) checkMarketConditions(ctx context.Context, snap PortfolioSnapshot, limits Limits) {
	if snap.VIXLevel >= limits.MaxVIXThreshold*0.9 && snap.VIXLevel < limits.MaxVIXThreshold {
		m.alert(ctx, EventMarketAlert, SeverityWarning,
			fmt.Sprintf("VIX %.1f approaching halt threshold %.1f", snap.VIXLevel, limits.MaxVIXThreshold), snap)
	}
}

// alert emits a severity-tagged alert and records it; neither failure
// interrupts monitoring
func (m *Monitor) alert(ctx context.Context, eventType, severity, message string, snap PortfolioSnapshot) {
	logger.Warn("risk alert",
		zap.String("type", eventType),
		zap.String("severity", severity),
		zap.String("message", message),
	)

	m.record(ctx, eventType, severity, message, snap)
	if m.alerter != nil {
		if err := m.alerter.AlertRiskLimit(severity, message); err != nil {
			logger.Error("failed to send risk alert", zap.Error(err))
		}
	}
}

func (m *Monitor) record(ctx context.Context, eventType, severity, message string, snap PortfolioSnapshot) {
	if m.recorder == nil {
		return
	}

	details, _ := json.Marshal(snap)
	event := RiskEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Details:   string(details),
		CreatedAt: time.Now(),
	}

	if err := m.recorder.RecordEvent(ctx, event); err != nil {
		logger.Error("failed to record risk event",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
