package marketdata

import (
	"context"

	"github.com/quantfold/odte-engine/pkg/models"
)

// Collect drains the tick channel into the history set until ctx is
// cancelled or the channel closes. Runs as the single writer goroutine.
func Collect(ctx context.Context, ticks <-chan models.PricePoint, set *HistorySet) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ticks:
			if !ok {
				return
			}
			set.Record(p)
		}
	}
}
