package takeprofit

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func easternTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	return time.Date(2026, 8, 28, hour, min, 0, 0, loc)
}

func TestMorningTierSequence(t *testing.T) {
	s := NewStrategy()
	entry := easternTime(t, 10, 0)
	p := s.OpenPosition("SPY", 2.00, decimal.NewFromInt(12000), entry)

	if len(p.Tiers) != 3 {
		t.Fatalf("expected 3 morning tiers, got %d", len(p.Tiers))
	}

	// +5% fires tier 1 for 33%
	exec := s.CheckTakeProfit(p, 2.10, entry.Add(30*time.Minute))
	if exec == nil {
		t.Fatal("expected tier 1 to fire at +5%")
	}
	if exec.TierIndex != 0 {
		t.Errorf("expected tier index 0, got %d", exec.TierIndex)
	}
	if !exec.SizeToClose.Equal(decimal.NewFromInt(3960)) {
		t.Errorf("expected 3960 to close, got %s", exec.SizeToClose)
	}
	if !p.RemainingSize.Equal(decimal.NewFromInt(8040)) {
		t.Errorf("expected remaining 8040, got %s", p.RemainingSize)
	}

	// Same price again: tier 1 must not re-fire
	if exec := s.CheckTakeProfit(p, 2.10, entry.Add(35*time.Minute)); exec != nil {
		t.Errorf("tier 1 re-fired: %+v", exec)
	}

	// +10% fires tier 2
	exec = s.CheckTakeProfit(p, 2.20, entry.Add(time.Hour))
	if exec == nil || exec.TierIndex != 1 {
		t.Fatalf("expected tier 2 to fire at +10%%, got %+v", exec)
	}
	if !p.RemainingSize.Equal(decimal.NewFromInt(4080)) {
		t.Errorf("expected remaining 4080, got %s", p.RemainingSize)
	}

	// +15% fires tier 3 and closes the position
	exec = s.CheckTakeProfit(p, 2.30, entry.Add(90*time.Minute))
	if exec == nil || exec.TierIndex != 2 {
		t.Fatalf("expected tier 3 to fire at +15%%, got %+v", exec)
	}
	if !p.Closed() {
		t.Errorf("expected closed position, remaining %s", p.RemainingSize)
	}

	// Terminal: further evaluation has no effect
	if exec := s.CheckTakeProfit(p, 3.00, entry.Add(2*time.Hour)); exec != nil {
		t.Errorf("closed position produced execution: %+v", exec)
	}
}

func TestRemainingSizeInvariant(t *testing.T) {
	s := NewStrategy()
	entry := easternTime(t, 9, 45)
	size := decimal.NewFromInt(12000)
	p := s.OpenPosition("QQQ", 2.00, size, entry)

	prices := []float64{2.02, 2.11, 2.11, 2.21, 2.25, 2.31, 2.40}
	prev := p.RemainingSize

	for i, price := range prices {
		s.CheckTakeProfit(p, price, entry.Add(time.Duration(i+1)*10*time.Minute))

		if p.RemainingSize.GreaterThan(prev) {
			t.Fatalf("remaining size increased from %s to %s", prev, p.RemainingSize)
		}
		prev = p.RemainingSize

		triggered := decimal.Zero
		for _, tier := range p.Tiers {
			if tier.Triggered {
				triggered = triggered.Add(decimal.NewFromFloat(tier.PositionPercent))
			}
		}
		expected := size.Mul(decimal.NewFromInt(1).Sub(triggered))
		if expected.LessThan(decimal.Zero) {
			expected = decimal.Zero
		}
		if !p.RemainingSize.Equal(expected) {
			t.Fatalf("remaining %s does not match size*(1-triggered)=%s", p.RemainingSize, expected)
		}
	}
}

func TestOnlyFirstMatchingTierFires(t *testing.T) {
	s := NewStrategy()
	entry := easternTime(t, 10, 0)
	p := s.OpenPosition("IWM", 2.00, decimal.NewFromInt(12000), entry)

	// +20% exceeds all thresholds at once; only tier 1 fires this call
	exec := s.CheckTakeProfit(p, 2.40, entry.Add(15*time.Minute))
	if exec == nil || exec.TierIndex != 0 {
		t.Fatalf("expected only tier 1, got %+v", exec)
	}
	if p.Tiers[1].Triggered || p.Tiers[2].Triggered {
		t.Error("higher tiers must not fire in the same call")
	}
}

func TestTierSetsByEntryHour(t *testing.T) {
	s := NewStrategy()
	size := decimal.NewFromInt(12000)

	morning := s.OpenPosition("SPY", 2.00, size, easternTime(t, 10, 30))
	if len(morning.Tiers) != 3 || morning.Tiers[0].ProfitThreshold != 0.05 {
		t.Errorf("unexpected morning tiers: %+v", morning.Tiers)
	}

	midday := s.OpenPosition("SPY", 2.00, size, easternTime(t, 12, 0))
	if len(midday.Tiers) != 3 || midday.Tiers[0].ProfitThreshold != 0.03 {
		t.Errorf("unexpected midday tiers: %+v", midday.Tiers)
	}

	late := s.OpenPosition("SPY", 2.00, size, easternTime(t, 14, 30))
	if len(late.Tiers) != 1 || late.Tiers[0].PositionPercent != 1.0 {
		t.Errorf("unexpected late tiers: %+v", late.Tiers)
	}
}

func TestTimeDecayCompressesThresholds(t *testing.T) {
	s := NewStrategy()
	entry := easternTime(t, 10, 0)
	p := s.OpenPosition("SPY", 2.00, decimal.NewFromInt(12000), entry)

	// +3% is below the 5% morning tier at mid-session
	if exec := s.CheckTakeProfit(p, 2.06, easternTime(t, 11, 0)); exec != nil {
		t.Fatalf("tier fired too early: %+v", exec)
	}

	// With under 2h to close and over 3h held: 0.05*0.7*0.9 = 0.0315;
	// +3% still short
	if exec := s.CheckTakeProfit(p, 2.06, easternTime(t, 14, 30)); exec != nil {
		t.Fatalf("tier fired below decayed threshold: %+v", exec)
	}

	// Under 1h to close: 0.05*0.5*0.9 = 0.0225; +3% now clears it
	exec := s.CheckTakeProfit(p, 2.06, easternTime(t, 15, 30))
	if exec == nil || exec.TierIndex != 0 {
		t.Fatalf("expected tier 1 at decayed threshold, got %+v", exec)
	}
}

func TestDecayFactorBands(t *testing.T) {
	s := NewStrategy()
	entry := easternTime(t, 9, 45)

	cases := []struct {
		now      time.Time
		expected float64
	}{
		{easternTime(t, 10, 0), 1.0},   // 6h to close, held 15m
		{easternTime(t, 13, 30), 0.72}, // <3h to close, held >3h: 0.8*0.9
		{easternTime(t, 14, 30), 0.63}, // <2h to close, held >3h: 0.7*0.9
		{easternTime(t, 15, 30), 0.45}, // <1h to close, held >3h: 0.5*0.9
	}

	for _, c := range cases {
		if got := s.decayFactor(entry, c.now); math.Abs(got-c.expected) > 1e-9 {
			t.Errorf("decayFactor at %s: expected %f, got %f", c.now.Format("15:04"), c.expected, got)
		}
	}
}
