package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type recordingAlerter struct {
	mu     sync.Mutex
	halts  []string
	clears []string
	limits []string
}

func (a *recordingAlerter) AlertEmergencyHalt(reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.halts = append(a.halts, reason)
	return nil
}

func (a *recordingAlerter) AlertHaltCleared(reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clears = append(a.clears, reason)
	return nil
}

func (a *recordingAlerter) AlertRiskLimit(severity, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.limits = append(a.limits, severity+": "+message)
	return nil
}

type recordingStore struct {
	mu     sync.Mutex
	events []RiskEvent
}

func (s *recordingStore) RecordEvent(_ context.Context, event RiskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingStore) byType(eventType string) []RiskEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RiskEvent
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestMonitor(alerter *recordingAlerter, store *recordingStore) *Monitor {
	sizer := NewSizer(LimitsFromConfig(testRiskConfig()))
	return NewMonitor(sizer, 5*time.Minute, 75, alerter, store)
}

func TestEmergencyHaltStickyAndIdempotent(t *testing.T) {
	alerter := &recordingAlerter{}
	store := &recordingStore{}
	m := newTestMonitor(alerter, store)
	ctx := context.Background()

	breach := PortfolioSnapshot{DailyPnL: decimal.NewFromInt(-5500)}

	if !m.CheckEmergencyConditions(ctx, breach) {
		t.Fatal("expected halt on breaching daily loss")
	}
	if !m.CheckEmergencyConditions(ctx, breach) {
		t.Fatal("expected halt to persist on repeated breach")
	}

	halted, reason := m.Halted()
	if !halted || reason == "" {
		t.Errorf("expected sticky halt with reason, got halted=%v reason=%q", halted, reason)
	}

	// Re-triggering while halted alerts and records only once
	if len(alerter.halts) != 1 {
		t.Errorf("expected exactly 1 halt alert, got %d", len(alerter.halts))
	}
	if got := len(store.byType(EventEmergencyHalt)); got != 1 {
		t.Errorf("expected exactly 1 halt event recorded, got %d", got)
	}

	// Halt survives a healthy snapshot
	if !m.CheckEmergencyConditions(ctx, PortfolioSnapshot{DailyPnL: decimal.NewFromInt(100)}) {
		t.Error("halt must persist until explicitly cleared")
	}
}

func TestClearHaltExactlyOnce(t *testing.T) {
	alerter := &recordingAlerter{}
	m := newTestMonitor(alerter, &recordingStore{})
	ctx := context.Background()

	m.CheckEmergencyConditions(ctx, PortfolioSnapshot{VIXLevel: 50})

	if !m.ClearHalt(ctx, "operator review complete") {
		t.Fatal("expected first clear to succeed")
	}
	if m.ClearHalt(ctx, "again") {
		t.Error("second clear must be a no-op")
	}

	if halted, _ := m.Halted(); halted {
		t.Error("expected halt cleared")
	}
	if len(alerter.clears) != 1 {
		t.Errorf("expected 1 clear alert, got %d", len(alerter.clears))
	}
}

func TestHaltTriggers(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		snap PortfolioSnapshot
	}{
		{"daily loss", PortfolioSnapshot{DailyPnL: decimal.NewFromInt(-5000)}},
		{"vix", PortfolioSnapshot{VIXLevel: 45}},
		{"exposure", PortfolioSnapshot{
			PositionCount: 1,
			TotalExposure: decimal.NewFromInt(36000), // 1.5 * 24000
		}},
		{"staleness", PortfolioSnapshot{DataAge: 6 * time.Minute}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newTestMonitor(&recordingAlerter{}, &recordingStore{})
			if !m.CheckEmergencyConditions(ctx, c.snap) {
				t.Errorf("expected halt for %s trigger", c.name)
			}
		})
	}

	m := newTestMonitor(&recordingAlerter{}, &recordingStore{})
	healthy := PortfolioSnapshot{
		DailyPnL:      decimal.NewFromInt(-1000),
		VIXLevel:      22,
		PositionCount: 2,
		TotalExposure: decimal.NewFromInt(30000),
		DataAge:       30 * time.Second,
	}
	if m.CheckEmergencyConditions(ctx, healthy) {
		t.Error("no halt expected for healthy snapshot")
	}
}

func TestDailyLossWarningAt75Percent(t *testing.T) {
	alerter := &recordingAlerter{}
	store := &recordingStore{}
	m := newTestMonitor(alerter, store)
	ctx := context.Background()

	// 2400 is 80% of the 3000 limit: warn but do not halt
	m.RunChecks(ctx, PortfolioSnapshot{DailyPnL: decimal.NewFromInt(-2400)})

	events := store.byType(EventDailyLossWarn)
	if len(events) != 1 {
		t.Fatalf("expected 1 daily loss warning, got %d", len(events))
	}
	if events[0].Severity != SeverityWarning {
		t.Errorf("expected warning severity, got %s", events[0].Severity)
	}
	if halted, _ := m.Halted(); halted {
		t.Error("continuous monitors must not halt trading")
	}

	// Below the warning threshold nothing fires
	store.events = nil
	m.RunChecks(ctx, PortfolioSnapshot{DailyPnL: decimal.NewFromInt(-1000)})
	if got := len(store.byType(EventDailyLossWarn)); got != 0 {
		t.Errorf("expected no warning at 33%% of limit, got %d", got)
	}
}

func TestGreeksAndPositionCountAlerts(t *testing.T) {
	store := &recordingStore{}
	m := newTestMonitor(&recordingAlerter{}, store)
	ctx := context.Background()

	m.RunChecks(ctx, PortfolioSnapshot{
		Greeks:        Greeks{Delta: -620, Gamma: 10, Vega: 200},
		PositionCount: 7,
		PerSymbolCounts: map[string]int{
			"SPY": 3,
			"QQQ": 1,
		},
	})

	if got := len(store.byType(EventGreeksBreach)); got != 1 {
		t.Errorf("expected 1 greeks breach (delta), got %d", got)
	}
	// Global count plus the SPY per-symbol breach
	if got := len(store.byType(EventPositionLimits)); got != 2 {
		t.Errorf("expected 2 position limit alerts, got %d", got)
	}
}

func TestStatusReflectsState(t *testing.T) {
	m := newTestMonitor(&recordingAlerter{}, &recordingStore{})
	ctx := context.Background()

	snap := PortfolioSnapshot{
		DailyPnL:      decimal.NewFromInt(-200),
		TotalExposure: decimal.NewFromInt(12000),
		PositionCount: 1,
		VIXLevel:      18,
	}
	m.CheckEmergencyConditions(ctx, snap)

	status := m.Status()
	if status.EmergencyHaltActive {
		t.Error("expected no halt in status")
	}
	if !status.DailyPnL.Equal(snap.DailyPnL) {
		t.Errorf("expected status pnl %s, got %s", snap.DailyPnL, status.DailyPnL)
	}
	if status.CheckedAt.IsZero() {
		t.Error("expected checked_at to be set")
	}
}
