package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfold/odte-engine/internal/adapters/config"
)

// Limits is the resolved set of account-relative risk limits. Percent
// based config values are converted to absolute dollar amounts once here;
// everything downstream works in absolutes.
type Limits struct {
	AccountSize           decimal.Decimal `json:"account_size"`
	MinPositionSize       decimal.Decimal `json:"min_position_size"`
	MaxPositionSize       decimal.Decimal `json:"max_position_size"`
	MaxSizeMultiplier     float64         `json:"max_size_multiplier"`
	MaxPortfolioExposure  decimal.Decimal `json:"max_portfolio_exposure"`
	MaxDailyLoss          decimal.Decimal `json:"max_daily_loss"`
	EmergencyHaltLoss     decimal.Decimal `json:"emergency_halt_loss"`
	MaxVIXThreshold       float64         `json:"max_vix_threshold"`
	MaxTotalPositions     int             `json:"max_total_positions"`
	MaxPerSymbolPositions int             `json:"max_per_symbol_positions"`
	MaxPortfolioDelta     float64         `json:"max_portfolio_delta"`
	MaxPortfolioGamma     float64         `json:"max_portfolio_gamma"`
	MaxPortfolioVega      float64         `json:"max_portfolio_vega"`
}

// LimitsFromConfig resolves config percentages against the account size
func LimitsFromConfig(cfg *config.RiskConfig) Limits {
	account := decimal.NewFromFloat(cfg.AccountSize)
	hundred := decimal.NewFromInt(100)

	return Limits{
		AccountSize:           account,
		MinPositionSize:       account.Mul(decimal.NewFromFloat(cfg.MinPositionPercent)).Div(hundred),
		MaxPositionSize:       account.Mul(decimal.NewFromFloat(cfg.MaxPositionPercent)).Div(hundred),
		MaxSizeMultiplier:     cfg.MaxSizeMultiplier,
		MaxPortfolioExposure:  account.Mul(decimal.NewFromFloat(cfg.MaxPortfolioExposure)).Div(hundred),
		MaxDailyLoss:          decimal.NewFromFloat(cfg.MaxDailyLoss),
		EmergencyHaltLoss:     decimal.NewFromFloat(cfg.EmergencyHaltLoss),
		MaxVIXThreshold:       cfg.MaxVIXThreshold,
		MaxTotalPositions:     cfg.MaxTotalPositions,
		MaxPerSymbolPositions: cfg.MaxPerSymbolPositions,
		MaxPortfolioDelta:     cfg.MaxPortfolioDelta,
		MaxPortfolioGamma:     cfg.MaxPortfolioGamma,
		MaxPortfolioVega:      cfg.MaxPortfolioVega,
	}
}

// Validate rejects operator limit updates that would disable trading
// entirely or invert the size band
func (l Limits) Validate() error {
	if l.AccountSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("account size must be positive")
	}
	if l.MinPositionSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("min position size must be positive")
	}
	if l.MaxPositionSize.LessThan(l.MinPositionSize) {
		return fmt.Errorf("max position size must not be below min position size")
	}
	if l.MaxSizeMultiplier < 1 {
		return fmt.Errorf("max size multiplier must be at least 1")
	}
	if l.EmergencyHaltLoss.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("emergency halt loss must be positive")
	}
	return nil
}
