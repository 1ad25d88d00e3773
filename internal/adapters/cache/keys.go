package cache

// Cache keys published by the engine components. TTLs are part of the
// contract: analytics keys expire so stale results vanish automatically,
// while the emergency-halt key never expires and is always authoritative.
const (
	// KeyCorrelationMatrix holds map[string]models.CorrelationSample keyed
	// by pair key. TTL: 2x the correlation refresh interval.
	KeyCorrelationMatrix = "analytics:correlation_matrix"

	// KeyDivergenceMap holds map[string]models.DivergenceAnalysis keyed by
	// pair key. TTL: 2x the correlation refresh interval.
	KeyDivergenceMap = "analytics:divergence_map"

	// KeyRegimeState holds models.RegimeState. TTL: ~300s.
	KeyRegimeState = "analytics:regime_state"

	// KeyAdaptiveParams holds models.AdaptiveParameters. TTL: same as regime state.
	KeyAdaptiveParams = "analytics:adaptive_params"

	// KeyActiveSignals holds []models.Signal. TTL: signal validity window.
	KeyActiveSignals = "signals:active"

	// KeyRiskMetrics holds risk.Status. TTL: 2x the risk monitor interval.
	KeyRiskMetrics = "risk:metrics"

	// KeyEmergencyHalt holds risk.HaltState. No TTL.
	KeyEmergencyHalt = "risk:emergency_halt"
)
