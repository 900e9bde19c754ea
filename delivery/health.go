package delivery

import (
	"context"
	"fmt"
	"time"
)

// DefaultFailureThreshold is the consecutive-failure count at which an
// endpoint is auto-disabled.
const DefaultFailureThreshold = 10

/* HealthTracker maintains per-endpoint rolling counters and enforces
 * auto-disable. Disabling is one-way from this subsystem's point of
 * view; operators re-enable endpoints out of band.
 *
 * Counter updates go through the store's atomic increments, so
 * concurrent sweeps may drift slightly on when exactly the threshold
 * trips. That imprecision is accepted.
 */
type HealthTracker struct {
	endpoints EndpointWriter
	threshold int
}

// NewHealthTracker creates a tracker with dependency injection. A
// threshold <= 0 falls back to the default.
func NewHealthTracker(endpoints EndpointWriter, threshold int) *HealthTracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &HealthTracker{
		endpoints: endpoints,
		threshold: threshold,
	}
}

// RecordOutcome updates the endpoint's counters for one delivery attempt.
func (h *HealthTracker) RecordOutcome(ctx context.Context, endpointID string, success bool, now time.Time) error {
	if success {
		if err := h.endpoints.RecordSuccess(ctx, endpointID, now); err != nil {
			return fmt.Errorf("recording endpoint success: %w", err)
		}
		return nil
	}

	failures, err := h.endpoints.RecordFailure(ctx, endpointID, now)
	if err != nil {
		return fmt.Errorf("recording endpoint failure: %w", err)
	}

	if failures >= h.threshold {
		if err := h.endpoints.DisableEndpoint(ctx, endpointID); err != nil {
			return fmt.Errorf("disabling endpoint: %w", err)
		}
	}

	return nil
}
