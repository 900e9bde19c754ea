package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sitecraft/webhook-outbox/delivery"
	"github.com/sitecraft/webhook-outbox/delivery/signature"
)

const (
	// Timeout is the hard per-attempt bound; exceeding it is a failure,
	// not a hang
	Timeout = 30 * time.Second

	// MaxBodyBytes bounds the captured response body
	MaxBodyBytes = 1000

	// UserAgent identifies SiteCraft deliveries to subscribers
	UserAgent = "SiteCraft-Webhooks/1.0"
)

// Reserved header names that custom headers may not override
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderID        = "X-Webhook-Id"
	HeaderEvent     = "X-Webhook-Event"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

/* envelope is the wire format a subscriber receives. Data carries the
 * producer's payload untouched; the envelope is serialized exactly once
 * and those bytes are both the HTTP body and the signing input
 */
type envelope struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	CreatedAt string          `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// HTTPSender implements delivery.Sender over net/http.
type HTTPSender struct {
	client *http.Client
}

// New creates a sender with a client configured for connection reuse
// across endpoints
func New() *HTTPSender {
	return &HTTPSender{
		client: &http.Client{
			Timeout: Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewWithClient creates a sender with a custom HTTP client, used by tests
// and callers that need custom transports
func NewWithClient(client *http.Client) *HTTPSender {
	if client == nil {
		return New()
	}
	return &HTTPSender{client: client}
}

// Send performs one outbound POST and classifies the result.
func (s *HTTPSender) Send(ctx context.Context, d delivery.Delivery, e delivery.Endpoint) delivery.Outcome {
	start := time.Now()

	env := envelope{
		ID:        d.ID,
		Event:     d.EventType,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Data:      d.Payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return delivery.Outcome{
			Success:      false,
			ErrorMessage: fmt.Sprintf("marshaling envelope: %v", err),
			Elapsed:      time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return delivery.Outcome{
			Success:      false,
			ErrorMessage: fmt.Sprintf("building request: %v", err),
			Elapsed:      time.Since(start),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderSignature, signature.Sign(body, e.Secret))
	req.Header.Set(HeaderID, d.ID)
	req.Header.Set(HeaderEvent, d.EventType)
	req.Header.Set(HeaderTimestamp, env.CreatedAt)

	for name, value := range e.CustomHeaders {
		if isReserved(name) {
			continue
		}
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Transport or timeout failure: no status code to report
		return delivery.Outcome{
			Success:      false,
			StatusCode:   0,
			ErrorMessage: err.Error(),
			Elapsed:      time.Since(start),
		}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	elapsed := time.Since(start)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return delivery.Outcome{
			Success:      true,
			StatusCode:   resp.StatusCode,
			ResponseBody: string(respBody),
			Elapsed:      elapsed,
		}
	}

	return delivery.Outcome{
		Success:      false,
		StatusCode:   resp.StatusCode,
		ResponseBody: string(respBody),
		ErrorMessage: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Elapsed:      elapsed,
	}
}

func isReserved(name string) bool {
	// Custom headers may override defaults like Content-Type, but never
	// the headers a subscriber uses to authenticate the delivery.
	switch strings.ToLower(name) {
	case strings.ToLower(HeaderSignature),
		strings.ToLower(HeaderID),
		strings.ToLower(HeaderEvent),
		strings.ToLower(HeaderTimestamp):
		return true
	}
	return false
}
