package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/sitecraft/webhook-outbox/delivery"
	"github.com/sitecraft/webhook-outbox/delivery/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEndpoint(t *testing.T, repo *memory.Repository) delivery.Endpoint {
	t.Helper()

	ep := delivery.Endpoint{
		ID:               "ep-1",
		URL:              "https://hooks.example.com/sitecraft",
		Secret:           "test-secret",
		IsActive:         true,
		SubscribedEvents: []string{"project.*"},
	}
	_, err := repo.StoreEndpoint(context.Background(), ep)
	require.NoError(t, err)
	return ep
}

func TestHealthTracker_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("success increments counter and resets failure streak", func(t *testing.T) {
		repo := memory.NewRepository()
		ep := newTestEndpoint(t, repo)
		tracker := delivery.NewHealthTracker(repo, 0)

		for i := 0; i < 3; i++ {
			_, err := repo.RecordFailure(ctx, ep.ID, now)
			require.NoError(t, err)
		}

		err := tracker.RecordOutcome(ctx, ep.ID, true, now)
		require.NoError(t, err)

		got, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.SuccessCount)
		assert.Equal(t, 0, got.FailureCount)
		assert.Equal(t, now, got.LastTriggeredAt)
		assert.True(t, got.IsActive)
	})

	t.Run("failure increments streak and stamps timestamps", func(t *testing.T) {
		repo := memory.NewRepository()
		ep := newTestEndpoint(t, repo)
		tracker := delivery.NewHealthTracker(repo, 0)

		err := tracker.RecordOutcome(ctx, ep.ID, false, now)
		require.NoError(t, err)

		got, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.FailureCount)
		assert.Equal(t, now, got.LastFailedAt)
		assert.Equal(t, now, got.LastTriggeredAt)
		assert.True(t, got.IsActive)
	})

	t.Run("ten consecutive failures auto-disable the endpoint", func(t *testing.T) {
		repo := memory.NewRepository()
		ep := newTestEndpoint(t, repo)
		tracker := delivery.NewHealthTracker(repo, 0)

		for i := 0; i < 9; i++ {
			require.NoError(t, tracker.RecordOutcome(ctx, ep.ID, false, now))

			got, err := repo.GetEndpoint(ctx, ep.ID)
			require.NoError(t, err)
			assert.True(t, got.IsActive, "endpoint must stay active before the threshold")
		}

		require.NoError(t, tracker.RecordOutcome(ctx, ep.ID, false, now))

		got, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.FailureCount)
		assert.False(t, got.IsActive)
	})

	t.Run("a success before the threshold resets the streak", func(t *testing.T) {
		repo := memory.NewRepository()
		ep := newTestEndpoint(t, repo)
		tracker := delivery.NewHealthTracker(repo, 0)

		for i := 0; i < 9; i++ {
			require.NoError(t, tracker.RecordOutcome(ctx, ep.ID, false, now))
		}
		require.NoError(t, tracker.RecordOutcome(ctx, ep.ID, true, now))

		// Nine more failures still should not trip the threshold
		for i := 0; i < 9; i++ {
			require.NoError(t, tracker.RecordOutcome(ctx, ep.ID, false, now))
		}

		got, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, got.FailureCount)
		assert.True(t, got.IsActive)
	})

	t.Run("custom threshold", func(t *testing.T) {
		repo := memory.NewRepository()
		ep := newTestEndpoint(t, repo)
		tracker := delivery.NewHealthTracker(repo, 3)

		for i := 0; i < 3; i++ {
			require.NoError(t, tracker.RecordOutcome(ctx, ep.ID, false, now))
		}

		got, err := repo.GetEndpoint(ctx, ep.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})
}
