package delivery

import (
	"context"
	"time"
)

// Outcome is the classified result of a single outbound HTTP attempt.
type Outcome struct {
	Success bool

	// StatusCode is 0 for transport-level failures (DNS, refused, timeout).
	StatusCode int

	// ResponseBody is truncated by the sender to bound storage.
	ResponseBody string
	ErrorMessage string

	Elapsed time.Duration
}

/* Sender performs the outbound HTTP call for one delivery attempt.
 * It never retries internally; retry policy lives in the scheduler.
 * Implementations must enforce a hard timeout so a stuck destination
 * cannot stall a sweep.
 */
type Sender interface {
	Send(ctx context.Context, d Delivery, e Endpoint) Outcome
}
