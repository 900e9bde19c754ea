//go:build integration

package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sitecraft/webhook-outbox/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_StoreDelivery_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("store delivery in Redis", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		d := delivery.Delivery{
			ID:          "test-delivery-1",
			EndpointID:  "crm-sync",
			EventType:   "project.created",
			Payload:     json.RawMessage(`{"project_id": "p-42"}`),
			MaxAttempts: delivery.DefaultMaxAttempts,
			Status:      delivery.Pending,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		id, err := repo.StoreDelivery(ctx, d)

		require.NoError(t, err)
		assert.Equal(t, d.ID, id)
		assert.True(t, KeyExists(t, redisContainer.Addr, "delivery:test-delivery-1"))
	})

	t.Run("store and retrieve delivery", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		d := delivery.Delivery{
			ID:           GenerateID(t, 2),
			EndpointID:   "billing",
			EventType:    "invoice.paid",
			Payload:      json.RawMessage(`{"invoice_id": 456, "amount": 1200}`),
			AttemptCount: 2,
			MaxAttempts:  5,
			Status:       delivery.Failed,
			NextRetryAt:  time.Now().Add(20 * time.Minute),
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}

		_, err := repo.StoreDelivery(ctx, d)
		require.NoError(t, err)

		retrieved, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)

		assert.Equal(t, d.ID, retrieved.ID)
		assert.Equal(t, d.EndpointID, retrieved.EndpointID)
		assert.Equal(t, d.EventType, retrieved.EventType)
		assert.Equal(t, string(d.Payload), string(retrieved.Payload))
		assert.Equal(t, d.AttemptCount, retrieved.AttemptCount)
		assert.Equal(t, d.MaxAttempts, retrieved.MaxAttempts)
		assert.Equal(t, d.Status, retrieved.Status)
		assert.WithinDuration(t, d.NextRetryAt, retrieved.NextRetryAt, time.Second)
	})

	t.Run("get missing delivery returns not found", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		_, err := repo.GetDelivery(ctx, "nope")
		require.ErrorIs(t, err, delivery.ErrNotFound)
	})
}

func TestRepository_ListDue_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("returns only eligible deliveries", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()

		eligible := delivery.Delivery{
			ID:          "due-now",
			EndpointID:  "crm-sync",
			EventType:   "project.created",
			Payload:     json.RawMessage(`{}`),
			MaxAttempts: 5,
			Status:      delivery.Pending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		notYet := eligible
		notYet.ID = "due-later"
		notYet.Status = delivery.Failed
		notYet.AttemptCount = 1
		notYet.NextRetryAt = now.Add(time.Hour)

		exhausted := eligible
		exhausted.ID = "dead"
		exhausted.Status = delivery.FailedPermanent
		exhausted.AttemptCount = 5

		for _, d := range []delivery.Delivery{eligible, notYet, exhausted} {
			_, err := repo.StoreDelivery(ctx, d)
			require.NoError(t, err)
		}

		due, err := repo.ListDue(ctx, now, 100)
		require.NoError(t, err)

		require.Len(t, due, 1)
		assert.Equal(t, "due-now", due[0].ID)
	})

	t.Run("honors the limit", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		for i := 0; i < 5; i++ {
			d := delivery.Delivery{
				ID:          GenerateID(t, i),
				EndpointID:  "crm-sync",
				EventType:   "project.created",
				Payload:     json.RawMessage(`{}`),
				MaxAttempts: 5,
				Status:      delivery.Pending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			_, err := repo.StoreDelivery(ctx, d)
			require.NoError(t, err)
		}

		due, err := repo.ListDue(ctx, now, 3)
		require.NoError(t, err)
		assert.Len(t, due, 3)
	})
}

func TestRepository_ApplyAttempt_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("moves delivery out of the due queue on success", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		d := delivery.Delivery{
			ID:          "attempt-1",
			EndpointID:  "crm-sync",
			EventType:   "project.created",
			Payload:     json.RawMessage(`{}`),
			MaxAttempts: 5,
			Status:      delivery.Pending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err := repo.StoreDelivery(ctx, d)
		require.NoError(t, err)

		d.Status = delivery.Delivered
		d.AttemptCount = 1
		d.LastAttemptAt = now
		d.DeliveredAt = now
		d.ResponseStatusCode = 200
		d.UpdatedAt = now

		require.NoError(t, repo.ApplyAttempt(ctx, d))

		retrieved, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, delivery.Delivered, retrieved.Status)
		assert.Equal(t, 1, retrieved.AttemptCount)
		assert.Equal(t, 200, retrieved.ResponseStatusCode)

		due, err := repo.ListDue(ctx, now.Add(time.Minute), 100)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("reschedules failed delivery for its retry time", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		d := delivery.Delivery{
			ID:          "attempt-2",
			EndpointID:  "crm-sync",
			EventType:   "project.created",
			Payload:     json.RawMessage(`{}`),
			MaxAttempts: 5,
			Status:      delivery.Pending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err := repo.StoreDelivery(ctx, d)
		require.NoError(t, err)

		d.Status = delivery.Failed
		d.AttemptCount = 1
		d.LastAttemptAt = now
		d.NextRetryAt = now.Add(10 * time.Minute)
		d.ResponseStatusCode = 503
		d.ErrorMessage = "HTTP 503: Service Unavailable"
		d.UpdatedAt = now

		require.NoError(t, repo.ApplyAttempt(ctx, d))

		due, err := repo.ListDue(ctx, now, 100)
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = repo.ListDue(ctx, now.Add(11*time.Minute), 100)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "attempt-2", due[0].ID)
	})
}

func TestRepository_Endpoints_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("store and retrieve endpoint", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		ep := delivery.Endpoint{
			ID:               "crm-sync",
			URL:              "https://crm.example.com/hooks/sitecraft",
			Secret:           "test-secret",
			IsActive:         true,
			SubscribedEvents: []string{"project.*", "lead.created"},
			CustomHeaders:    map[string]string{"X-Tenant-Id": "acme"},
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}

		_, err := repo.StoreEndpoint(ctx, ep)
		require.NoError(t, err)

		retrieved, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)

		assert.Equal(t, ep.URL, retrieved.URL)
		assert.Equal(t, ep.Secret, retrieved.Secret)
		assert.True(t, retrieved.IsActive)
		assert.Equal(t, ep.SubscribedEvents, retrieved.SubscribedEvents)
		assert.Equal(t, "acme", retrieved.CustomHeaders["X-Tenant-Id"])
	})

	t.Run("failure counting and disable", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		ep := delivery.Endpoint{
			ID:               "flaky",
			URL:              "https://flaky.example.com/hook",
			Secret:           "test-secret",
			IsActive:         true,
			SubscribedEvents: []string{"*"},
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		_, err := repo.StoreEndpoint(ctx, ep)
		require.NoError(t, err)

		now := time.Now()
		count, err := repo.RecordFailure(ctx, ep.ID, now)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repo.RecordFailure(ctx, ep.ID, now)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		// Success resets the streak
		require.NoError(t, repo.RecordSuccess(ctx, ep.ID, now))

		retrieved, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, retrieved.FailureCount)
		assert.Equal(t, 1, retrieved.SuccessCount)

		require.NoError(t, repo.DisableEndpoint(ctx, ep.ID))

		retrieved, err = repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.False(t, retrieved.IsActive)
	})
}
