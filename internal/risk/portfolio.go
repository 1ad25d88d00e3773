package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OpenPosition is one live position tracked for exposure and Greeks
type OpenPosition struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Size     decimal.Decimal `json:"size"`
	Greeks   Greeks          `json:"greeks"`
	OpenedAt time.Time       `json:"opened_at"`
}

// Portfolio tracks open exposure and realized daily P&L. It is the single
// writer for position state; risk monitors take read-only snapshots.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]OpenPosition
	dailyPnL  decimal.Decimal
}

// NewPortfolio creates an empty portfolio tracker
func NewPortfolio() *Portfolio {
	return &Portfolio{
		positions: make(map[string]OpenPosition),
	}
}

// Open registers a new position
func (p *Portfolio) Open(pos OpenPosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[pos.ID] = pos
}

// Reduce shrinks a position after a partial close, removing it when the
// remaining size hits zero, and books the realized P&L
func (p *Portfolio) Reduce(id string, closedSize, realizedPnL decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[id]
	if !ok {
		return fmt.Errorf("unknown position %s", id)
	}

	pos.Size = pos.Size.Sub(closedSize)
	if pos.Size.LessThanOrEqual(decimal.Zero) {
		delete(p.positions, id)
	} else {
		p.positions[id] = pos
	}

	p.dailyPnL = p.dailyPnL.Add(realizedPnL)
	return nil
}

// AddPnL books realized P&L not tied to a tracked position
func (p *Portfolio) AddPnL(delta decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dailyPnL = p.dailyPnL.Add(delta)
}

// ResetDay clears the daily P&L at session start
func (p *Portfolio) ResetDay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dailyPnL = decimal.Zero
}

// TotalExposure returns the summed open position sizes
func (p *Portfolio) TotalExposure() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := decimal.Zero
	for _, pos := range p.positions {
		total = total.Add(pos.Size)
	}
	return total
}

// Snapshot captures the portfolio state plus the provided market context
func (p *Portfolio) Snapshot(vix float64, dataAge time.Duration) PortfolioSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := PortfolioSnapshot{
		DailyPnL:        p.dailyPnL,
		TotalExposure:   decimal.Zero,
		PositionCount:   len(p.positions),
		PerSymbolCounts: make(map[string]int),
		VIXLevel:        vix,
		DataAge:         dataAge,
	}

	for _, pos := range p.positions {
		snap.TotalExposure = snap.TotalExposure.Add(pos.Size)
		snap.PerSymbolCounts[pos.Symbol]++
		snap.Greeks.Delta += pos.Greeks.Delta
		snap.Greeks.Gamma += pos.Greeks.Gamma
		snap.Greeks.Vega += pos.Greeks.Vega
	}

	return snap
}
