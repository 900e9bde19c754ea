package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sitecraft/webhook-outbox/delivery"
)

/* In-memory implementation of delivery.Repository
 * Used by unit tests and local development; state is lost on restart
 */

type Repository struct {
	mu         sync.RWMutex
	deliveries map[string]delivery.Delivery
	endpoints  map[string]delivery.Endpoint
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{
		deliveries: make(map[string]delivery.Delivery),
		endpoints:  make(map[string]delivery.Endpoint),
	}
}

// StoreDelivery stores or replaces a delivery record
func (r *Repository) StoreDelivery(ctx context.Context, d delivery.Delivery) (string, error) {
	if d.ID == "" {
		return "", fmt.Errorf("delivery id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries[d.ID] = d
	return d.ID, nil
}

// GetDelivery retrieves a delivery by ID
func (r *Repository) GetDelivery(ctx context.Context, id string) (delivery.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.deliveries[id]
	if !ok {
		return delivery.Delivery{}, fmt.Errorf("delivery %s: %w", id, delivery.ErrNotFound)
	}
	return d, nil
}

// ListDue returns due pending/failed deliveries ordered by retry time
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]delivery.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []delivery.Delivery
	for _, d := range r.deliveries {
		if d.Due(now) {
			due = append(due, d)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(due[j].NextRetryAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ApplyAttempt replaces the stored delivery with the post-attempt state
func (r *Repository) ApplyAttempt(ctx context.Context, d delivery.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deliveries[d.ID]; !ok {
		return fmt.Errorf("delivery %s: %w", d.ID, delivery.ErrNotFound)
	}
	r.deliveries[d.ID] = d
	return nil
}

// StoreEndpoint stores or replaces an endpoint record
func (r *Repository) StoreEndpoint(ctx context.Context, e delivery.Endpoint) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validating endpoint: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[e.ID] = e
	return e.ID, nil
}

// GetEndpoint retrieves an endpoint by ID
func (r *Repository) GetEndpoint(ctx context.Context, id string) (delivery.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.endpoints[id]
	if !ok {
		return delivery.Endpoint{}, fmt.Errorf("endpoint %s: %w", id, delivery.ErrNotFound)
	}
	return e, nil
}

// ListEndpoints returns all endpoints
func (r *Repository) ListEndpoints(ctx context.Context) ([]delivery.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eps := make([]delivery.Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		eps = append(eps, e)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID < eps[j].ID })
	return eps, nil
}

// RecordSuccess increments the success counter and resets the failure streak
func (r *Repository) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.endpoints[id]
	if !ok {
		return fmt.Errorf("endpoint %s: %w", id, delivery.ErrNotFound)
	}

	e.SuccessCount++
	e.FailureCount = 0
	e.LastTriggeredAt = at
	e.UpdatedAt = at
	r.endpoints[id] = e
	return nil
}

// RecordFailure increments the failure streak and returns the new count
func (r *Repository) RecordFailure(ctx context.Context, id string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.endpoints[id]
	if !ok {
		return 0, fmt.Errorf("endpoint %s: %w", id, delivery.ErrNotFound)
	}

	e.FailureCount++
	e.LastFailedAt = at
	e.LastTriggeredAt = at
	e.UpdatedAt = at
	r.endpoints[id] = e
	return e.FailureCount, nil
}

// DisableEndpoint forces IsActive to false
func (r *Repository) DisableEndpoint(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.endpoints[id]
	if !ok {
		return fmt.Errorf("endpoint %s: %w", id, delivery.ErrNotFound)
	}

	e.IsActive = false
	e.UpdatedAt = time.Now()
	r.endpoints[id] = e
	return nil
}

// Close is a no-op for the in-memory repository
func (r *Repository) Close(ctx context.Context) error {
	return nil
}
