package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the delivery system.
type Metrics struct {
	// DueCount is the number of deliveries currently eligible for a sweep
	DueCount int64 `json:"due_count"`

	// StatusCounts maps status name to count of deliveries in that status
	StatusCounts map[string]int64 `json:"status_counts"`

	// Throughput represents deliveries completed per time window
	Throughput ThroughputMetrics `json:"throughput"`

	// EndpointHealth summarizes endpoint activity state
	EndpointHealth EndpointHealthMetrics `json:"endpoint_health"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// ThroughputMetrics represents deliveries completed over different time windows.
type ThroughputMetrics struct {
	// LastMinute is deliveries completed in the last 1 minute
	LastMinute int64 `json:"last_minute"`

	// LastFiveMinutes is deliveries completed in the last 5 minutes
	LastFiveMinutes int64 `json:"last_five_minutes"`

	// LastFifteenMinutes is deliveries completed in the last 15 minutes
	LastFifteenMinutes int64 `json:"last_fifteen_minutes"`
}

// EndpointHealthMetrics summarizes the registered endpoints.
type EndpointHealthMetrics struct {
	// Active is the number of endpoints accepting deliveries
	Active int64 `json:"active"`

	// Disabled is the number of endpoints turned off, including auto-disabled ones
	Disabled int64 `json:"disabled"`
}

// Collector defines the interface for collecting metrics from the delivery system.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetDueCount returns the number of deliveries eligible for a sweep
	GetDueCount(ctx context.Context) (int64, error)

	// GetStatusCounts returns the count of deliveries by status
	GetStatusCounts(ctx context.Context) (map[string]int64, error)

	// GetThroughput returns deliveries completed over time windows
	GetThroughput(ctx context.Context) (ThroughputMetrics, error)

	// GetEndpointHealth returns active/disabled endpoint counts
	GetEndpointHealth(ctx context.Context) (EndpointHealthMetrics, error)
}
