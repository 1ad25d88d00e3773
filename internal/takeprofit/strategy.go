package takeprofit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/odte-engine/pkg/logger"
)

const marketCloseHour = 16

// Tier is one partial-exit step. Once triggered it is frozen: time-decay
// never retroactively alters it.
type Tier struct {
	ProfitThreshold float64   `json:"profit_threshold"`
	PositionPercent float64   `json:"position_percent"`
	Triggered       bool      `json:"triggered"`
	TriggeredAt     time.Time `json:"triggered_at,omitempty"`
}

// Position tracks the tiered exits of one open position. Tiers are fixed
// at open time based on the entry hour; the later in the day the entry,
// the tighter the targets.
type Position struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	EntryPrice    float64         `json:"entry_price"`
	EntryTime     time.Time       `json:"entry_time"`
	PositionSize  decimal.Decimal `json:"position_size"`
	RemainingSize decimal.Decimal `json:"remaining_size"`
	Tiers         []Tier          `json:"tiers"`
}

// Closed reports whether the position is fully exited
func (p *Position) Closed() bool {
	return p.RemainingSize.LessThanOrEqual(decimal.Zero)
}

// Execution describes one triggered tier
type Execution struct {
	TierIndex     int             `json:"tier_index"`
	ProfitPct     float64         `json:"profit_pct"`
	SizeToClose   decimal.Decimal `json:"size_to_close"`
	RemainingSize decimal.Decimal `json:"remaining_size"`
}

// Strategy selects and evaluates take-profit tiers. All time-of-day logic
// runs in Eastern time, where the 0DTE session lives.
type Strategy struct {
	loc *time.Location
}

// NewStrategy creates a tiered take-profit strategy
func NewStrategy() *Strategy {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		logger.Warn("falling back to UTC for session clock", zap.Error(err))
		loc = time.UTC
	}
	return &Strategy{loc: loc}
}

// OpenPosition creates tier tracking for a freshly opened position
func (s *Strategy) OpenPosition(symbol string, entryPrice float64, size decimal.Decimal, entryTime time.Time) *Position {
	return &Position{
		ID:            uuid.New().String(),
		Symbol:        symbol,
		EntryPrice:    entryPrice,
		EntryTime:     entryTime,
		PositionSize:  size,
		RemainingSize: size,
		Tiers:         s.tiersForEntry(entryTime),
	}
}

// tiersForEntry picks the tier set by entry hour
func (s *Strategy) tiersForEntry(entryTime time.Time) []Tier {
	switch hour := entryTime.In(s.loc).Hour(); {
	case hour < 11:
		return []Tier{
			{ProfitThreshold: 0.05, PositionPercent: 0.33},
			{ProfitThreshold: 0.10, PositionPercent: 0.33},
			{ProfitThreshold: 0.15, PositionPercent: 0.34},
		}
	case hour < 14:
		return []Tier{
			{ProfitThreshold: 0.03, PositionPercent: 0.33},
			{ProfitThreshold: 0.07, PositionPercent: 0.33},
			{ProfitThreshold: 0.12, PositionPercent: 0.34},
		}
	default:
		return []Tier{
			{ProfitThreshold: 0.05, PositionPercent: 1.0},
		}
	}
}

// CheckTakeProfit evaluates the position at the current price. The first
// untriggered tier whose decayed threshold is met fires; at most one tier
// fires per call. Returns nil when nothing fires or the position is
// already closed.
func (s *Strategy) CheckTakeProfit(p *Position, currentPrice float64, now time.Time) *Execution {
	if p.Closed() || p.EntryPrice <= 0 {
		return nil
	}

	profitPct := (currentPrice - p.EntryPrice) / p.EntryPrice
	decay := s.decayFactor(p.EntryTime, now)

	for i := range p.Tiers {
		tier := &p.Tiers[i]
		if tier.Triggered {
			continue
		}
		if profitPct < tier.ProfitThreshold*decay {
			continue
		}

		tier.Triggered = true
		tier.TriggeredAt = now

		sizeToClose := p.PositionSize.Mul(decimal.NewFromFloat(tier.PositionPercent))
		if sizeToClose.GreaterThan(p.RemainingSize) {
			sizeToClose = p.RemainingSize
		}
		p.RemainingSize = p.RemainingSize.Sub(sizeToClose)

		logger.Info("take-profit tier triggered",
			zap.String("symbol", p.Symbol),
			zap.Int("tier", i+1),
			zap.Float64("profit_pct", profitPct),
			zap.String("size_to_close", sizeToClose.String()),
			zap.String("remaining", p.RemainingSize.String()),
		)

		return &Execution{
			TierIndex:     i,
			ProfitPct:     profitPct,
			SizeToClose:   sizeToClose,
			RemainingSize: p.RemainingSize,
		}
	}

	return nil
}

// decayFactor compresses untriggered thresholds as the 0DTE close
// approaches, with an extra cut for positions held over 3 hours
func (s *Strategy) decayFactor(entryTime, now time.Time) float64 {
	local := now.In(s.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, 0, 0, 0, s.loc)
	if !local.Before(close) {
		close = close.AddDate(0, 0, 1)
	}

	factor := 1.0
	switch hoursToClose := close.Sub(local).Hours(); {
	case hoursToClose < 1:
		factor = 0.5
	case hoursToClose < 2:
		factor = 0.7
	case hoursToClose < 3:
		factor = 0.8
	}

	if now.Sub(entryTime).Hours() > 3 {
		factor *= 0.9
	}

	return factor
}
