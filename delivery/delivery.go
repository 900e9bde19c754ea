package delivery

import (
	"encoding/json"
	"time"
)

// DefaultMaxAttempts is the attempt ceiling applied when a producer
// enqueues a delivery without one.
const DefaultMaxAttempts = 5

/* Delivery represents one queued attempt to deliver a single event
 * to a single endpoint. Uses value semantics as it represents data,
 * not behavior.
 *
 * Payload is opaque to this subsystem: it is carried and signed as-is,
 * never inspected or re-validated.
 */
type Delivery struct {
	ID         string
	EndpointID string
	EventType  string
	Payload    json.RawMessage

	AttemptCount int
	MaxAttempts  int
	Status       Status

	// NextRetryAt zero means "eligible immediately".
	NextRetryAt   time.Time
	LastAttemptAt time.Time
	DeliveredAt   time.Time

	ResponseStatusCode int
	ResponseBody       string
	ErrorMessage       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the delivery is eligible for a sweep at the given time.
func (d Delivery) Due(now time.Time) bool {
	if !d.Status.IsRetryable() {
		return false
	}
	if d.AttemptCount >= d.MaxAttempts {
		return false
	}
	return d.NextRetryAt.IsZero() || !d.NextRetryAt.After(now)
}

// Result is the per-delivery observability record returned by a dispatch run.
// Skipped deliveries (inactive endpoint, unsubscribed event, missing endpoint)
// produce no Result.
type Result struct {
	DeliveryID string `json:"delivery_id"`
	EndpointID string `json:"endpoint_id"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
}
