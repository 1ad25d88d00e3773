package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Event types
const (
	EventEmergencyHalt  = "emergency_halt"
	EventHaltCleared    = "halt_cleared"
	EventDailyLossWarn  = "daily_loss_warning"
	EventGreeksBreach   = "greeks_breach"
	EventPositionLimits = "position_limits"
	EventMarketAlert    = "market_alert"
	EventLimitsUpdated  = "limits_updated"
)

// RiskEvent is one audited risk occurrence, persisted for the operator
// trail
type RiskEvent struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"event_type" json:"event_type"`
	Severity  string    `db:"severity" json:"severity"`
	Message   string    `db:"message" json:"message"`
	Details   string    `db:"details" json:"details"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Greeks is the aggregated portfolio Greek exposure
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
}

// PortfolioSnapshot is the per-cycle input to the risk monitors. Produced
// by the position tracker, consumed read-only.
type PortfolioSnapshot struct {
	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	TotalExposure   decimal.Decimal `json:"total_exposure"`
	PositionCount   int             `json:"position_count"`
	PerSymbolCounts map[string]int  `json:"per_symbol_counts"`
	Greeks          Greeks          `json:"greeks"`
	VIXLevel        float64         `json:"vix_level"`
	DataAge         time.Duration   `json:"data_age"`
}

// HaltState is the authoritative halt flag published without TTL: absence
// means "never halted", not "unknown"
type HaltState struct {
	Active   bool      `json:"active"`
	Reason   string    `json:"reason,omitempty"`
	HaltedAt time.Time `json:"halted_at,omitempty"`
}

// Status is the published risk state other components and operators read
// from the cache
type Status struct {
	EmergencyHaltActive bool            `json:"emergency_halt_active"`
	HaltReason          string          `json:"halt_reason,omitempty"`
	HaltedAt            time.Time       `json:"halted_at,omitempty"`
	DailyPnL            decimal.Decimal `json:"daily_pnl"`
	TotalExposure       decimal.Decimal `json:"total_exposure"`
	PositionCount       int             `json:"position_count"`
	CheckedAt           time.Time       `json:"checked_at"`
}
