package correlation

import (
	"math"
	"testing"
	"time"

	"github.com/quantfold/odte-engine/internal/adapters/config"
	"github.com/quantfold/odte-engine/internal/marketdata"
	"github.com/quantfold/odte-engine/pkg/models"
)

func testConfig() *config.CorrelationConfig {
	return &config.CorrelationConfig{
		ShortWindow:        20,
		MediumWindow:       60,
		LongWindow:         180,
		RollingWindow:      20,
		MinSamples:         10,
		MinBaselineSamples: 10,
		BreakdownThreshold: 0.3,
	}
}

func feedHistory(set *marketdata.HistorySet, symbol string, prices []float64) {
	base := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	for i, price := range prices {
		set.Record(models.PricePoint{
			Symbol:    symbol,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Price:     price,
		})
	}
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	a := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	b := []float64{0.02, -0.04, 0.03, 0.01, -0.02}

	r := Pearson(a, b)
	if math.Abs(r-1.0) > 1e-9 {
		t.Errorf("expected r=1.0 for scaled series, got %f", r)
	}

	inverted := make([]float64, len(b))
	for i, v := range b {
		inverted[i] = -v
	}
	r = Pearson(a, inverted)
	if math.Abs(r+1.0) > 1e-9 {
		t.Errorf("expected r=-1.0 for inverted series, got %f", r)
	}
}

func TestPearsonDegenerateInputs(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	moving := []float64{0.01, -0.02, 0.03, 0.0}

	if r := Pearson(flat, moving); r != 0 {
		t.Errorf("expected r=0 for zero-variance series, got %f", r)
	}
	if r := Pearson(nil, nil); r != 0 {
		t.Errorf("expected r=0 for empty series, got %f", r)
	}
	if r := Pearson(moving, moving[:3]); r != 0 {
		t.Errorf("expected r=0 for mismatched lengths, got %f", r)
	}
}

func TestPearsonWithinBounds(t *testing.T) {
	a := []float64{0.012, -0.003, 0.021, -0.017, 0.004, 0.009, -0.011, 0.002}
	b := []float64{-0.004, 0.015, 0.007, -0.009, 0.013, -0.002, 0.006, -0.01}

	r := Pearson(a, b)
	if r < -1 || r > 1 {
		t.Errorf("correlation %f outside [-1, 1]", r)
	}
}

func TestToReturns(t *testing.T) {
	returns := toReturns([]float64{100, 102, 99.96})
	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-0.02) > 1e-9 {
		t.Errorf("expected first return 0.02, got %f", returns[0])
	}
	if math.Abs(returns[1]+0.02) > 1e-9 {
		t.Errorf("expected second return -0.02, got %f", returns[1])
	}

	if r := toReturns([]float64{100}); r != nil {
		t.Errorf("expected nil for single price, got %v", r)
	}
}

func TestComputeMatrixSkipsInsufficientData(t *testing.T) {
	histories := marketdata.NewHistorySet(500)
	feedHistory(histories, "SPY", []float64{500, 501, 502})
	feedHistory(histories, "QQQ", []float64{420, 421, 422})

	engine := NewEngine(testConfig(), histories, []string{"SPY", "QQQ"})
	matrix, divergences := engine.ComputeMatrix(time.Now())

	if len(matrix) != 0 {
		t.Errorf("expected empty matrix with 3 samples, got %d entries", len(matrix))
	}
	if len(divergences) != 0 {
		t.Errorf("expected no divergences, got %d", len(divergences))
	}
}

func TestComputeMatrixCoversAllPairs(t *testing.T) {
	histories := marketdata.NewHistorySet(500)

	n := 60
	spy := make([]float64, n)
	qqq := make([]float64, n)
	iwm := make([]float64, n)
	for i := 0; i < n; i++ {
		drift := math.Sin(float64(i) / 3)
		spy[i] = 500 + drift
		qqq[i] = 420 + drift*0.9
		iwm[i] = 210 - drift*0.5
	}
	feedHistory(histories, "SPY", spy)
	feedHistory(histories, "QQQ", qqq)
	feedHistory(histories, "IWM", iwm)

	engine := NewEngine(testConfig(), histories, []string{"SPY", "QQQ", "IWM"})
	if got := len(engine.Pairs()); got != 3 {
		t.Fatalf("expected 3 pairs for 3 symbols, got %d", got)
	}

	now := time.Now()
	matrix, divergences := engine.ComputeMatrix(now)

	if len(matrix) != 3 {
		t.Fatalf("expected 3 matrix entries, got %d", len(matrix))
	}

	for key, sample := range matrix {
		for name, value := range map[string]float64{
			"short":  sample.ShortTerm,
			"medium": sample.MediumTerm,
			"long":   sample.LongTerm,
		} {
			if value < -1 || value > 1 {
				t.Errorf("%s: %s correlation %f outside [-1, 1]", key, name, value)
			}
		}
		if !sample.CalculatedAt.Equal(now) {
			t.Errorf("%s: unexpected CalculatedAt %v", key, sample.CalculatedAt)
		}
	}

	// 60 samples leave 40 rolling windows, enough for divergence analysis
	if len(divergences) != 3 {
		t.Errorf("expected divergence analysis for all pairs, got %d", len(divergences))
	}

	spyQQQ := matrix["SPY-QQQ"]
	if spyQQQ.ShortTerm < 0.5 {
		t.Errorf("expected strong positive SPY-QQQ correlation, got %f", spyQQQ.ShortTerm)
	}
}

func TestAnalyzeExtremeDivergenceIsNotBreakdown(t *testing.T) {
	baseline := []float64{0.85, 0.82, 0.78, 0.75, 0.72, 0.68, 0.65}
	pair := models.Pair{Base: "SPY", Quote: "QQQ"}

	analysis := Analyze(pair, 0.45, baseline, 0.3, time.Now())
	if analysis == nil {
		t.Fatal("expected analysis, got nil")
	}

	if analysis.ZScore > -4.0 {
		t.Errorf("expected z-score below -4.0, got %f", analysis.ZScore)
	}
	if analysis.Type != models.DivergenceExtreme {
		t.Errorf("expected extreme divergence, got %s", analysis.Type)
	}
	if analysis.IsBreakdown {
		t.Error("0.45 is above the 0.3 threshold, must not be a breakdown")
	}
	if analysis.Strength <= 0 {
		t.Errorf("expected positive strength, got %f", analysis.Strength)
	}
}

func TestAnalyzeBreakdownIndependentOfZScore(t *testing.T) {
	// Noisy baseline near the threshold: the drop below it is only a
	// moderate divergence but still a breakdown
	baseline := []float64{0.45, 0.25, 0.40, 0.30, 0.35, 0.42, 0.28, 0.38, 0.33, 0.34}
	pair := models.Pair{Base: "SPY", Quote: "IWM"}

	analysis := Analyze(pair, 0.28, baseline, 0.3, time.Now())
	if analysis == nil {
		t.Fatal("expected analysis, got nil")
	}

	if !analysis.IsBreakdown {
		t.Error("expected breakdown for correlation below threshold")
	}
	if analysis.Type == models.DivergenceExtreme {
		t.Errorf("expected non-extreme classification, got %s", analysis.Type)
	}
}

func TestAnalyzeZeroStdYieldsNormal(t *testing.T) {
	baseline := []float64{0.8, 0.8, 0.8, 0.8, 0.8}

	analysis := Analyze(models.Pair{Base: "QQQ", Quote: "IWM"}, 0.5, baseline, 0.3, time.Now())
	if analysis == nil {
		t.Fatal("expected analysis, got nil")
	}

	if analysis.ZScore != 0 {
		t.Errorf("expected z-score 0 with zero std, got %f", analysis.ZScore)
	}
	if analysis.Type != models.DivergenceNormal {
		t.Errorf("expected normal classification, got %s", analysis.Type)
	}
	// Strength still reflects the raw distance from the mean
	if math.Abs(analysis.Strength-30.0) > 1e-9 {
		t.Errorf("expected strength 30.0, got %f", analysis.Strength)
	}
}

func TestRollingCorrelationsWindowCount(t *testing.T) {
	n := 35
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = 100 + math.Sin(float64(i))
		b[i] = 200 + math.Cos(float64(i))
	}

	series := rollingCorrelations(a, b, 20)
	if len(series) != n-20 {
		t.Errorf("expected %d rolling windows, got %d", n-20, len(series))
	}

	if series = rollingCorrelations(a[:15], b[:15], 20); series != nil {
		t.Errorf("expected nil for series shorter than window, got %d entries", len(series))
	}
}
