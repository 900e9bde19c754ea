package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sitecraft/webhook-outbox/delivery/event"
)

// DefaultSweepLimit bounds how many due deliveries one sweep picks up.
const DefaultSweepLimit = 100

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the business operations for outbound delivery
type UseCase interface {
	Enqueue(ctx context.Context, endpointID, eventType string, payload json.RawMessage, maxAttempts int) (string, error)
	// Dispatch processes exactly one delivery by id, bypassing the
	// eligibility gates so operators can force a retry.
	Dispatch(ctx context.Context, deliveryID string) ([]Result, error)
	// Sweep processes all due pending/failed deliveries up to the page limit.
	Sweep(ctx context.Context) ([]Result, error)
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
}

type Service struct {
	Repo       Repository
	Sender     Sender
	Health     *HealthTracker
	SweepLimit int
}

// NewService creates a new delivery service with dependency injection
func NewService(repo Repository, sender Sender, health *HealthTracker) *Service {
	return &Service{
		Repo:       repo,
		Sender:     sender,
		Health:     health,
		SweepLimit: DefaultSweepLimit,
	}
}

// Enqueue stores a new delivery in pending state. Producers call this
// with the raw event payload; the payload is never inspected here.
func (s *Service) Enqueue(ctx context.Context, endpointID, eventType string, payload json.RawMessage, maxAttempts int) (string, error) {
	if err := event.ValidateType(eventType); err != nil {
		return "", fmt.Errorf("validating event type: %w", err)
	}
	if _, err := s.Repo.GetEndpoint(ctx, endpointID); err != nil {
		return "", fmt.Errorf("loading endpoint: %w", err)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now()
	d := Delivery{
		ID:          uuid.New().String(),
		EndpointID:  endpointID,
		EventType:   eventType,
		Payload:     payload,
		Status:      Pending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := s.Repo.StoreDelivery(ctx, d)
	if err != nil {
		return "", fmt.Errorf("storing delivery: %w", err)
	}

	return id, nil
}

/* Dispatch handles an explicit single-delivery invocation. It loads the
 * record regardless of its current status, retry time or attempt count;
 * a manual dispatch is allowed to retry even slightly early. The
 * activity and subscription gates still apply.
 */
func (s *Service) Dispatch(ctx context.Context, deliveryID string) ([]Result, error) {
	d, err := s.Repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("loading delivery: %w", err)
	}

	results := make([]Result, 0, 1)
	if r := s.process(ctx, d); r != nil {
		results = append(results, *r)
	}
	return results, nil
}

// Sweep selects the page of due deliveries and processes each one,
// isolating per-delivery failures so one bad record cannot abort the rest.
func (s *Service) Sweep(ctx context.Context) ([]Result, error) {
	limit := s.SweepLimit
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	due, err := s.Repo.ListDue(ctx, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due deliveries: %w", err)
	}

	results := make([]Result, 0, len(due))
	for _, d := range due {
		if r := s.process(ctx, d); r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

/* process runs the four strictly sequential steps for one delivery:
 * load endpoint, gate on activity and subscription, send, then persist
 * the retry transition and the endpoint health update.
 *
 * Returns nil for silent skips (missing endpoint, inactive endpoint,
 * unsubscribed event); those leave the delivery untouched and count no
 * attempt.
 */
func (s *Service) process(ctx context.Context, d Delivery) *Result {
	ep, err := s.Repo.GetEndpoint(ctx, d.EndpointID)
	if errors.Is(err, ErrNotFound) {
		// Endpoint was presumably deleted; the delivery stays as-is.
		return nil
	}
	if err != nil {
		return &Result{
			DeliveryID: d.ID,
			EndpointID: d.EndpointID,
			Success:    false,
			Error:      fmt.Sprintf("loading endpoint: %v", err),
		}
	}

	if !ep.IsActive {
		return nil
	}

	if !event.Matches(ep.SubscribedEvents, d.EventType) {
		return nil
	}

	outcome := s.Sender.Send(ctx, d, ep)
	now := time.Now()

	result := Result{
		DeliveryID: d.ID,
		EndpointID: ep.ID,
		Success:    outcome.Success,
		StatusCode: outcome.StatusCode,
		ElapsedMs:  outcome.Elapsed.Milliseconds(),
		Error:      outcome.ErrorMessage,
	}

	updated := ApplyOutcome(d, outcome, now)
	if err := s.Repo.ApplyAttempt(ctx, updated); err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("persisting attempt: %v", err)
		return &result
	}

	if err := s.Health.RecordOutcome(ctx, ep.ID, outcome.Success, now); err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("updating endpoint health: %v", err)
	}

	return &result
}

// GetDelivery returns a delivery by id
func (s *Service) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	d, err := s.Repo.GetDelivery(ctx, id)
	if err != nil {
		return Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}
	return d, nil
}

// GetEndpoint returns an endpoint by id
func (s *Service) GetEndpoint(ctx context.Context, id string) (Endpoint, error) {
	e, err := s.Repo.GetEndpoint(ctx, id)
	if err != nil {
		return Endpoint{}, fmt.Errorf("getting endpoint: %w", err)
	}
	return e, nil
}

// ListEndpoints returns all registered endpoints
func (s *Service) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	eps, err := s.Repo.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing endpoints: %w", err)
	}
	return eps, nil
}
