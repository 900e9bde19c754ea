package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitecraft/webhook-outbox/delivery"
)

/* Redis implementation of delivery.Repository
 * Uses Redis Hashes for delivery/endpoint records, a sorted set as the
 * due-queue index (scored by next retry time) and per-status sets for
 * cheap status counts
 */

const (
	deliveryPrefix = "delivery" // Hash naming: delivery:{delivery_id}
	endpointPrefix = "endpoint" // Hash naming: endpoint:{endpoint_id}

	endpointIndexKey = "endpoints"            // Set of all endpoint ids
	dueQueueKey      = "deliveries:due"       // ZSET of retryable delivery ids scored by next_retry_at (0 = immediately)
	statusPrefix     = "deliveries:status"    // Set naming: deliveries:status:{status}
	deliveredLogKey  = "deliveries:delivered" // ZSET of delivered ids scored by delivered_at, for throughput metrics
)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// StoreDelivery stores a delivery record and indexes it for sweeping
func (r *Repository) StoreDelivery(ctx context.Context, d delivery.Delivery) (string, error) {
	hashKey := deliveryKey(d.ID)

	err := r.client.HSet(ctx, hashKey, map[string]interface{}{
		"id":                   d.ID,
		"endpoint_id":          d.EndpointID,
		"event_type":           d.EventType,
		"payload":              string(d.Payload),
		"attempt_count":        d.AttemptCount,
		"max_attempts":         d.MaxAttempts,
		"status":               d.Status.String(),
		"next_retry_at":        unixOrZero(d.NextRetryAt),
		"last_attempt_at":      unixOrZero(d.LastAttemptAt),
		"delivered_at":         unixOrZero(d.DeliveredAt),
		"response_status_code": d.ResponseStatusCode,
		"response_body":        d.ResponseBody,
		"error_message":        d.ErrorMessage,
		"created_at":           d.CreatedAt.Unix(),
		"updated_at":           d.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("storing delivery: %w", err)
	}

	if err := r.reindexDelivery(ctx, d); err != nil {
		return "", err
	}

	return d.ID, nil
}

// GetDelivery retrieves a delivery by ID from its Redis hash
func (r *Repository) GetDelivery(ctx context.Context, id string) (delivery.Delivery, error) {
	data, err := r.client.HGetAll(ctx, deliveryKey(id)).Result()
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}
	if len(data) == 0 {
		return delivery.Delivery{}, fmt.Errorf("delivery %s: %w", id, delivery.ErrNotFound)
	}

	d := delivery.Delivery{
		ID:                 data["id"],
		EndpointID:         data["endpoint_id"],
		EventType:          data["event_type"],
		Payload:            json.RawMessage(data["payload"]),
		AttemptCount:       int(parseInt64(data["attempt_count"])),
		MaxAttempts:        int(parseInt64(data["max_attempts"])),
		Status:             delivery.NewStatus(data["status"]),
		NextRetryAt:        timeOrZero(data["next_retry_at"]),
		LastAttemptAt:      timeOrZero(data["last_attempt_at"]),
		DeliveredAt:        timeOrZero(data["delivered_at"]),
		ResponseStatusCode: int(parseInt64(data["response_status_code"])),
		ResponseBody:       data["response_body"],
		ErrorMessage:       data["error_message"],
		CreatedAt:          time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt:          time.Unix(parseInt64(data["updated_at"]), 0),
	}

	return d, nil
}

// ListDue returns due deliveries from the due-queue index, bounded by limit
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]delivery.Delivery, error) {
	ids, err := r.client.ZRangeByScore(ctx, dueQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("querying due queue: %w", err)
	}

	deliveries := make([]delivery.Delivery, 0, len(ids))
	for _, id := range ids {
		d, err := r.GetDelivery(ctx, id)
		if err != nil {
			// Record may have expired between the index read and the fetch
			continue
		}

		// The index can lag the record under concurrent sweeps, so the
		// eligibility gates are re-checked against the record itself.
		if !d.Due(now) {
			continue
		}

		deliveries = append(deliveries, d)
	}

	return deliveries, nil
}

// ApplyAttempt persists the post-attempt state of a delivery and moves
// it between the status and due-queue indexes. Safe to re-apply.
func (r *Repository) ApplyAttempt(ctx context.Context, d delivery.Delivery) error {
	err := r.client.HSet(ctx, deliveryKey(d.ID), map[string]interface{}{
		"status":               d.Status.String(),
		"attempt_count":        d.AttemptCount,
		"next_retry_at":        unixOrZero(d.NextRetryAt),
		"last_attempt_at":      unixOrZero(d.LastAttemptAt),
		"delivered_at":         unixOrZero(d.DeliveredAt),
		"response_status_code": d.ResponseStatusCode,
		"response_body":        d.ResponseBody,
		"error_message":        d.ErrorMessage,
		"updated_at":           d.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating delivery: %w", err)
	}

	return r.reindexDelivery(ctx, d)
}

// reindexDelivery synchronizes the status sets and due queue with the record
func (r *Repository) reindexDelivery(ctx context.Context, d delivery.Delivery) error {
	pipe := r.client.TxPipeline()

	for _, s := range []delivery.Status{delivery.Pending, delivery.Failed, delivery.Delivered, delivery.FailedPermanent} {
		if s != d.Status {
			pipe.SRem(ctx, statusKey(s), d.ID)
		}
	}
	pipe.SAdd(ctx, statusKey(d.Status), d.ID)

	if d.Status.IsRetryable() && d.AttemptCount < d.MaxAttempts {
		pipe.ZAdd(ctx, dueQueueKey, redis.Z{
			Score:  float64(unixOrZero(d.NextRetryAt)),
			Member: d.ID,
		})
	} else {
		pipe.ZRem(ctx, dueQueueKey, d.ID)
	}

	if d.Status == delivery.Delivered {
		pipe.ZAdd(ctx, deliveredLogKey, redis.Z{
			Score:  float64(d.DeliveredAt.Unix()),
			Member: d.ID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indexing delivery: %w", err)
	}
	return nil
}

// StoreEndpoint stores an endpoint record
func (r *Repository) StoreEndpoint(ctx context.Context, e delivery.Endpoint) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validating endpoint: %w", err)
	}

	eventsJSON, err := json.Marshal(e.SubscribedEvents)
	if err != nil {
		return "", fmt.Errorf("marshaling subscribed events: %w", err)
	}

	headersJSON, err := json.Marshal(e.CustomHeaders)
	if err != nil {
		return "", fmt.Errorf("marshaling custom headers: %w", err)
	}

	err = r.client.HSet(ctx, endpointKey(e.ID), map[string]interface{}{
		"id":                e.ID,
		"url":               e.URL,
		"secret":            e.Secret,
		"is_active":         boolToInt(e.IsActive),
		"subscribed_events": string(eventsJSON),
		"custom_headers":    string(headersJSON),
		"success_count":     e.SuccessCount,
		"failure_count":     e.FailureCount,
		"last_triggered_at": unixOrZero(e.LastTriggeredAt),
		"last_failed_at":    unixOrZero(e.LastFailedAt),
		"created_at":        e.CreatedAt.Unix(),
		"updated_at":        e.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("storing endpoint: %w", err)
	}

	if err := r.client.SAdd(ctx, endpointIndexKey, e.ID).Err(); err != nil {
		return "", fmt.Errorf("indexing endpoint: %w", err)
	}

	return e.ID, nil
}

// GetEndpoint retrieves an endpoint by ID
func (r *Repository) GetEndpoint(ctx context.Context, id string) (delivery.Endpoint, error) {
	data, err := r.client.HGetAll(ctx, endpointKey(id)).Result()
	if err != nil {
		return delivery.Endpoint{}, fmt.Errorf("getting endpoint: %w", err)
	}
	if len(data) == 0 {
		return delivery.Endpoint{}, fmt.Errorf("endpoint %s: %w", id, delivery.ErrNotFound)
	}

	var events []string
	if s, ok := data["subscribed_events"]; ok && s != "" {
		if err := json.Unmarshal([]byte(s), &events); err != nil {
			return delivery.Endpoint{}, fmt.Errorf("unmarshaling subscribed events: %w", err)
		}
	}

	headers := make(map[string]string)
	if s, ok := data["custom_headers"]; ok && s != "" {
		if err := json.Unmarshal([]byte(s), &headers); err != nil {
			return delivery.Endpoint{}, fmt.Errorf("unmarshaling custom headers: %w", err)
		}
	}

	e := delivery.Endpoint{
		ID:               data["id"],
		URL:              data["url"],
		Secret:           data["secret"],
		IsActive:         data["is_active"] == "1",
		SubscribedEvents: events,
		CustomHeaders:    headers,
		SuccessCount:     int(parseInt64(data["success_count"])),
		FailureCount:     int(parseInt64(data["failure_count"])),
		LastTriggeredAt:  timeOrZero(data["last_triggered_at"]),
		LastFailedAt:     timeOrZero(data["last_failed_at"]),
		CreatedAt:        time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt:        time.Unix(parseInt64(data["updated_at"]), 0),
	}

	return e, nil
}

// ListEndpoints returns all registered endpoints
func (r *Repository) ListEndpoints(ctx context.Context) ([]delivery.Endpoint, error) {
	ids, err := r.client.SMembers(ctx, endpointIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing endpoint ids: %w", err)
	}

	endpoints := make([]delivery.Endpoint, 0, len(ids))
	for _, id := range ids {
		e, err := r.GetEndpoint(ctx, id)
		if err != nil {
			continue
		}
		endpoints = append(endpoints, e)
	}

	return endpoints, nil
}

// RecordSuccess increments the success counter and resets the failure streak
func (r *Repository) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	key := endpointKey(id)

	if err := r.client.HIncrBy(ctx, key, "success_count", 1).Err(); err != nil {
		return fmt.Errorf("incrementing success count: %w", err)
	}

	err := r.client.HSet(ctx, key, map[string]interface{}{
		"failure_count":     0,
		"last_triggered_at": at.Unix(),
		"updated_at":        at.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating endpoint timestamps: %w", err)
	}

	return nil
}

// RecordFailure atomically increments the failure streak and returns the
// new count so the caller can apply the auto-disable threshold
func (r *Repository) RecordFailure(ctx context.Context, id string, at time.Time) (int, error) {
	key := endpointKey(id)

	failures, err := r.client.HIncrBy(ctx, key, "failure_count", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing failure count: %w", err)
	}

	err = r.client.HSet(ctx, key, map[string]interface{}{
		"last_failed_at":    at.Unix(),
		"last_triggered_at": at.Unix(),
		"updated_at":        at.Unix(),
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("updating endpoint timestamps: %w", err)
	}

	return int(failures), nil
}

// DisableEndpoint forces is_active to false
func (r *Repository) DisableEndpoint(ctx context.Context, id string) error {
	err := r.client.HSet(ctx, endpointKey(id), map[string]interface{}{
		"is_active":  0,
		"updated_at": time.Now().Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("disabling endpoint: %w", err)
	}

	return nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func deliveryKey(id string) string {
	return fmt.Sprintf("%s:%s", deliveryPrefix, id)
}

func endpointKey(id string) string {
	return fmt.Sprintf("%s:%s", endpointPrefix, id)
}

func statusKey(s delivery.Status) string {
	return fmt.Sprintf("%s:%s", statusPrefix, s.String())
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(s string) time.Time {
	v := parseInt64(s)
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseInt64(s string) int64 {
	var result int64
	fmt.Sscanf(s, "%d", &result)
	return result
}
