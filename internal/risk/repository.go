package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository persists the risk event audit trail
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a risk event repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// RecordEvent stores one risk event
func (r *Repository) RecordEvent(ctx context.Context, event RiskEvent) error {
	query := `
		INSERT INTO risk_events (id, event_type, severity, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Type, event.Severity, event.Message, event.Details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record risk event: %w", err)
	}

	return nil
}

// RecentEvents returns the latest events, newest first
func (r *Repository) RecentEvents(ctx context.Context, limit int) ([]RiskEvent, error) {
	query := `
		SELECT id, event_type, severity, message, details, created_at
		FROM risk_events
		ORDER BY created_at DESC
		LIMIT $1`

	var events []RiskEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch risk events: %w", err)
	}

	return events, nil
}

// EventsByType returns events of one type since the given time, newest
// first
func (r *Repository) EventsByType(ctx context.Context, eventType string, since time.Time) ([]RiskEvent, error) {
	query := `
		SELECT id, event_type, severity, message, details, created_at
		FROM risk_events
		WHERE event_type = $1 AND created_at >= $2
		ORDER BY created_at DESC`

	var events []RiskEvent
	if err := r.db.SelectContext(ctx, &events, query, eventType, since); err != nil {
		return nil, fmt.Errorf("failed to fetch %s events: %w", eventType, err)
	}

	return events, nil
}
