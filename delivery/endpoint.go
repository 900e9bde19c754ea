package delivery

import (
	"fmt"
	"net/url"
	"time"
)

/* Endpoint represents a registered webhook destination: URL, signing
 * secret, event subscriptions and rolling health counters.
 *
 * The secret is used only to compute signatures. It is never sent on
 * the wire, written into delivery records, or logged.
 */
type Endpoint struct {
	ID     string
	URL    string
	Secret string

	// IsActive gates all delivery attempts. The health tracker forces it
	// to false after too many consecutive failures; re-enabling is a
	// manual operation outside this subsystem.
	IsActive bool

	// SubscribedEvents holds exact event names, "*", or "prefix.*" patterns.
	SubscribedEvents []string

	// CustomHeaders are merged into every outbound request. Reserved
	// signature/id/event/timestamp headers cannot be overridden.
	CustomHeaders map[string]string

	// FailureCount counts consecutive failures; any success resets it to 0.
	SuccessCount int
	FailureCount int

	LastTriggeredAt time.Time
	LastFailedAt    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the endpoint can be delivered to.
func (e Endpoint) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("endpoint id is required")
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("parsing endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint url must be http or https: %s", e.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint url host is required: %s", e.URL)
	}
	if e.Secret == "" {
		return fmt.Errorf("endpoint secret is required")
	}
	return nil
}
