package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/entityxtract/entityxtract/pkg/llm"
)

// costLookupDelays are the waits between successive cost lookups. The
// cost backend is eventually consistent: a fresh generation ID may 404
// briefly, so lookups retry with increasing fixed delays.
var costLookupDelays = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond}

// costResolver enriches a response with its billed cost. It is fault-
// isolated from the extraction control flow: any failure downgrades to
// "cost unknown" (a nil return) and is only logged, never escalated.
type costResolver struct {
	tracker llm.CostTracker
	enabled bool
	log     *slog.Logger
	sleep   sleepFunc
}

// resolve looks up the billed cost for a response's generation ID.
// Returns nil when cost tracking is disabled, unsupported, or the lookup
// ultimately failed.
func (r *costResolver) resolve(ctx context.Context, resp *llm.Response) *float64 {
	if !r.enabled || r.tracker == nil || !r.tracker.SupportsGenerationCost() {
		return nil
	}
	if resp.GenerationID == "" {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= len(costLookupDelays); attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, costLookupDelays[attempt-1]); err != nil {
				return nil
			}
		}

		cost, err := r.tracker.FetchGenerationCost(ctx, resp.GenerationID)
		if err == nil {
			return &cost
		}
		lastErr = err

		if !errors.Is(err, llm.ErrCostNotReady) {
			break
		}
	}

	r.log.Warn("cost lookup failed, cost unknown",
		"generation_id", resp.GenerationID,
		"error", lastErr)
	return nil
}
