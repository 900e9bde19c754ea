package delivery

import "fmt"

/* Status represents the current state of an outbound delivery
 * Follows the lifecycle: Pending -> Failed (retryable) -> Delivered/FailedPermanent
 */
type Status int

const (
	Pending Status = iota + 1
	Failed
	Delivered
	FailedPermanent
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	case Delivered:
		return "delivered"
	case FailedPermanent:
		return "failed_permanent"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "failed":
		return Failed
	case "delivered":
		return Delivered
	case "failed_permanent":
		return FailedPermanent
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > FailedPermanent {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Delivered || s == FailedPermanent
}

// IsRetryable returns true if a sweep may pick the delivery up again
func (s Status) IsRetryable() bool {
	return s == Pending || s == Failed
}
