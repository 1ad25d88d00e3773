package feed

import (
	"context"

	"github.com/quantfold/odte-engine/pkg/models"
)

// Feed delivers market data for the tracked universe. The engine tolerates
// gaps: a missing tick means the affected pair/cycle is skipped, not failed.
type Feed interface {
	// Start begins delivery. Blocks until ctx is cancelled.
	Start(ctx context.Context) error
	// Ticks returns the delivery channel
	Ticks() <-chan models.PricePoint
}
