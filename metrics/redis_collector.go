package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitecraft/webhook-outbox/delivery"
)

// Index keys maintained by the redis repository
const (
	dueQueueKey      = "deliveries:due"
	statusPrefix     = "deliveries:status"
	deliveredLogKey  = "deliveries:delivered"
	endpointIndexKey = "endpoints"
)

// RedisCollector implements the Collector interface for Redis-backed metrics
type RedisCollector struct {
	client *redis.Client
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(client *redis.Client) *RedisCollector {
	return &RedisCollector{
		client: client,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	dueCount, err := c.GetDueCount(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting due count: %w", err)
	}

	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting status counts: %w", err)
	}

	throughput, err := c.GetThroughput(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting throughput: %w", err)
	}

	endpointHealth, err := c.GetEndpointHealth(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting endpoint health: %w", err)
	}

	return Metrics{
		DueCount:       dueCount,
		StatusCounts:   statusCounts,
		Throughput:     throughput,
		EndpointHealth: endpointHealth,
		Timestamp:      time.Now(),
	}, nil
}

// GetDueCount returns the number of deliveries whose retry time has passed
func (c *RedisCollector) GetDueCount(ctx context.Context) (int64, error) {
	count, err := c.client.ZCount(ctx, dueQueueKey, "-inf", fmt.Sprintf("%d", time.Now().Unix())).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("counting due deliveries: %w", err)
	}
	return count, nil
}

// GetStatusCounts returns counts of deliveries grouped by status
func (c *RedisCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	statuses := []delivery.Status{
		delivery.Pending,
		delivery.Failed,
		delivery.Delivered,
		delivery.FailedPermanent,
	}

	statusCounts := make(map[string]int64, len(statuses))
	for _, s := range statuses {
		key := fmt.Sprintf("%s:%s", statusPrefix, s.String())

		count, err := c.client.SCard(ctx, key).Result()
		if err != nil && err != redis.Nil {
			// Continue even if one set fails
			continue
		}

		statusCounts[s.String()] = count
	}

	return statusCounts, nil
}

// GetThroughput calculates deliveries completed over different time windows
func (c *RedisCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	now := time.Now()

	countSince := func(d time.Duration) (int64, error) {
		min := fmt.Sprintf("%d", now.Add(-d).Unix())
		count, err := c.client.ZCount(ctx, deliveredLogKey, min, "+inf").Result()
		if err != nil && err != redis.Nil {
			return 0, err
		}
		return count, nil
	}

	lastMinute, err := countSince(1 * time.Minute)
	if err != nil {
		return ThroughputMetrics{}, fmt.Errorf("counting last minute: %w", err)
	}

	lastFiveMinutes, err := countSince(5 * time.Minute)
	if err != nil {
		return ThroughputMetrics{}, fmt.Errorf("counting last five minutes: %w", err)
	}

	lastFifteenMinutes, err := countSince(15 * time.Minute)
	if err != nil {
		return ThroughputMetrics{}, fmt.Errorf("counting last fifteen minutes: %w", err)
	}

	return ThroughputMetrics{
		LastMinute:         lastMinute,
		LastFiveMinutes:    lastFiveMinutes,
		LastFifteenMinutes: lastFifteenMinutes,
	}, nil
}

// GetEndpointHealth counts active and disabled endpoints
func (c *RedisCollector) GetEndpointHealth(ctx context.Context) (EndpointHealthMetrics, error) {
	ids, err := c.client.SMembers(ctx, endpointIndexKey).Result()
	if err != nil && err != redis.Nil {
		return EndpointHealthMetrics{}, fmt.Errorf("listing endpoint ids: %w", err)
	}

	var health EndpointHealthMetrics
	for _, id := range ids {
		active, err := c.client.HGet(ctx, fmt.Sprintf("endpoint:%s", id), "is_active").Result()
		if err != nil {
			// Endpoint record may have been removed after the index read
			continue
		}

		if active == "1" {
			health.Active++
		} else {
			health.Disabled++
		}
	}

	return health, nil
}
