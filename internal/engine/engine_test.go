package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/odte-engine/internal/adapters/cache"
	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/internal/risk"
	"github.com/quantfold/odte-engine/internal/takeprofit"
	"github.com/quantfold/odte-engine/pkg/models"
)

func newTestEngine(t *testing.T) (*Engine, *risk.Monitor, *risk.Portfolio, *marketdata.HistorySet, cache.Store) {
	t.Helper()

	cfg := &config.Config{
		Universe: config.UniverseConfig{
			Symbols:   []string{"SPY", "QQQ", "IWM"},
			VIXSymbol: "VIX",
		},
		Risk: config.RiskConfig{
			AccountSize:             60000,
			MinPositionPercent:      20,
			MaxPositionPercent:      40,
			MaxSizeMultiplier:       2.0,
			MaxPortfolioExposure:    80,
			MaxDailyLoss:            3000,
			EmergencyHaltLoss:       5000,
			MaxVIXThreshold:         45,
			MaxTotalPositions:       6,
			MaxPerSymbolPositions:   2,
			DailyLossWarningPercent: 75,
		},
	}

	store := cache.NewMemoryStore()
	histories := marketdata.NewHistorySet(100)
	sizer := risk.NewSizer(risk.LimitsFromConfig(&cfg.Risk))
	monitor := risk.NewMonitor(sizer, 5*time.Minute, cfg.Risk.DailyLossWarningPercent, nil, nil)
	portfolio := risk.NewPortfolio()

	eng := New(cfg, store, histories, sizer, monitor, portfolio, takeprofit.NewStrategy())
	return eng, monitor, portfolio, histories, store
}

func recordVIX(histories *marketdata.HistorySet, level float64) {
	histories.Record(models.PricePoint{
		Symbol:    "VIX",
		Timestamp: time.Now(),
		Price:     level,
	})
}

func TestCalculatePositionSizeUsesLiveConditions(t *testing.T) {
	eng, _, _, histories, _ := newTestEngine(t)
	recordVIX(histories, 10)

	// 1.1 * 2.0 * 1.1 * 1.0 = 2.42, capped at 2.0 -> clamped to the max
	size := eng.CalculatePositionSize(context.Background(), 0.95)
	if !size.Equal(decimal.NewFromInt(24000)) {
		t.Errorf("expected 24000, got %s", size)
	}
}

func TestHaltShortCircuitsSizingUntilCleared(t *testing.T) {
	eng, _, _, histories, _ := newTestEngine(t)
	recordVIX(histories, 50)
	ctx := context.Background()

	if !eng.CheckEmergencyConditions(ctx) {
		t.Fatal("expected halt at VIX 50")
	}

	if size := eng.CalculatePositionSize(ctx, 0.95); !size.IsZero() {
		t.Errorf("expected zero size while halted, got %s", size)
	}
	status := eng.GetCurrentRiskStatus()
	if !status.EmergencyHaltActive {
		t.Error("expected halt in risk status")
	}

	if !eng.ClearEmergencyHalt(ctx, "vix spike resolved") {
		t.Fatal("expected clear to succeed")
	}
	if eng.ClearEmergencyHalt(ctx, "again") {
		t.Error("second clear must be a no-op")
	}

	recordVIX(histories, 20)
	if size := eng.CalculatePositionSize(ctx, 0.95); size.IsZero() {
		t.Error("expected sizing restored after clear")
	}
}

func TestGetActiveSignalsMissYieldsEmpty(t *testing.T) {
	eng, _, _, _, _ := newTestEngine(t)

	active, err := eng.GetActiveSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no signals, got %d", len(active))
	}
}

func TestTakeProfitBooksIntoPortfolio(t *testing.T) {
	eng, _, portfolio, _, _ := newTestEngine(t)

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	entry := time.Date(2026, 8, 28, 10, 0, 0, 0, loc)

	pos := eng.OpenPosition("SPY", 2.00, decimal.NewFromInt(12000), risk.Greeks{Delta: 40}, entry)
	if !portfolio.TotalExposure().Equal(decimal.NewFromInt(12000)) {
		t.Fatalf("expected 12000 exposure, got %s", portfolio.TotalExposure())
	}

	exec := eng.CheckTakeProfit(pos, 2.10, entry.Add(30*time.Minute))
	if exec == nil {
		t.Fatal("expected tier 1 to fire at +5%")
	}

	if !portfolio.TotalExposure().Equal(decimal.NewFromInt(8040)) {
		t.Errorf("expected exposure reduced to 8040, got %s", portfolio.TotalExposure())
	}
}

func TestConcentrationRiskFromCachedMatrix(t *testing.T) {
	eng, _, _, histories, store := newTestEngine(t)
	recordVIX(histories, 20)
	ctx := context.Background()

	matrix := map[string]models.CorrelationSample{
		"SPY-QQQ": {Pair: models.Pair{Base: "SPY", Quote: "QQQ"}, ShortTerm: 0.85},
		"SPY-IWM": {Pair: models.Pair{Base: "SPY", Quote: "IWM"}, ShortTerm: 0.4},
	}
	if err := store.Set(ctx, cache.KeyCorrelationMatrix, matrix, time.Minute); err != nil {
		t.Fatalf("failed to seed matrix: %v", err)
	}

	// Correlation risk 0.85 -> adjustment 0.6: 0.9 * 2.0 * 0.6 = 1.08
	size := eng.CalculatePositionSize(ctx, 0.95)
	expected := decimal.NewFromInt(12000).Mul(decimal.NewFromFloat(1.08))
	if !size.Equal(expected) {
		t.Errorf("expected %s, got %s", expected, size)
	}
}
