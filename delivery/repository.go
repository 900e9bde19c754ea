package delivery

import (
	"context"
	"errors"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// ErrNotFound is returned when a delivery or endpoint does not exist.
// A missing endpoint during dispatch is a silent skip, not an error,
// so callers need to distinguish it from storage failures.
var ErrNotFound = errors.New("not found")

// DeliveryReader provides read operations for deliveries
type DeliveryReader interface {
	/* Context is always the first parameter in functions that do I/O
	 * This allows for cancellation, timeouts, and shared values
	 */
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	/* ListDue returns deliveries with status pending/failed whose
	 * NextRetryAt is unset or in the past and whose attempt count is
	 * below the ceiling, bounded to limit to keep sweeps cheap
	 */
	ListDue(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
}

// DeliveryWriter provides write operations for deliveries
type DeliveryWriter interface {
	StoreDelivery(ctx context.Context, d Delivery) (string, error)
	/* ApplyAttempt persists the outcome of one delivery attempt: status,
	 * attempt count, retry/attempt/delivered timestamps and the captured
	 * response fields. It is an update-by-id that is safe to re-apply,
	 * overlapping sweeps may process the same delivery twice
	 */
	ApplyAttempt(ctx context.Context, d Delivery) error
}

// EndpointReader provides read operations for endpoints
type EndpointReader interface {
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
}

// EndpointWriter provides write operations for endpoint health state
type EndpointWriter interface {
	StoreEndpoint(ctx context.Context, e Endpoint) (string, error)
	/* RecordSuccess increments the success counter, resets the
	 * consecutive-failure counter and stamps LastTriggeredAt
	 */
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	/* RecordFailure atomically increments the consecutive-failure counter
	 * and returns the new value so the health tracker can decide whether
	 * to auto-disable. Also stamps LastFailedAt and LastTriggeredAt
	 */
	RecordFailure(ctx context.Context, id string, at time.Time) (int, error)
	// DisableEndpoint forces IsActive to false.
	DisableEndpoint(ctx context.Context, id string) error
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	DeliveryReader
	DeliveryWriter
	EndpointReader
	EndpointWriter
	Close(ctx context.Context) error
}
