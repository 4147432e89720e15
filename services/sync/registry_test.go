package sync

import (
	"context"
	"testing"
	"time"

	"rapidcare/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okFetch(ctx context.Context) (*models.FetchResult, error) {
	return &models.FetchResult{}, nil
}

func failFetch(ctx context.Context) (*models.FetchResult, error) {
	return nil, NewNetworkError("upstream unreachable", nil)
}

func drain(s *Session) {
	go func() {
		for range s.Events() {
		}
	}()
}

func TestRegistryRejectsInvalidSessions(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	_, err := r.Start(context.Background(), "", models.EndpointResources, "h1", SessionConfig{Fetch: okFetch})
	assert.Error(t, err)

	_, err = r.Start(context.Background(), "s1", models.EndpointResources, "h1", SessionConfig{})
	assert.Error(t, err)
}

func TestRegistryReplacesSessionWithSameID(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	first, err := r.Start(context.Background(), "resources:h1", models.EndpointResources, "h1", SessionConfig{
		Interval: time.Second,
		Fetch:    okFetch,
	})
	require.NoError(t, err)
	drain(first)

	second, err := r.Start(context.Background(), "resources:h1", models.EndpointResources, "h1", SessionConfig{
		Interval: time.Second,
		Fetch:    okFetch,
	})
	require.NoError(t, err)
	drain(second)

	assert.NotSame(t, first, second)
	assert.True(t, first.Status().Cancelled, "replaced session must be stopped")

	got, ok := r.Get("resources:h1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, r.Status(), 1, "at most one live session per id")
}

func TestRegistryStopUnknownID(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.Stop("nope"))
}

func TestRegistryStatusSortedBySessionID(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		s, err := r.Start(context.Background(), id, models.EndpointDashboard, "h1", SessionConfig{
			Interval: time.Second,
			Fetch:    okFetch,
		})
		require.NoError(t, err)
		drain(s)
	}

	statuses := r.Status()
	require.Len(t, statuses, 3)
	assert.Equal(t, "alpha", statuses[0].SessionID)
	assert.Equal(t, "bravo", statuses[1].SessionID)
	assert.Equal(t, "charlie", statuses[2].SessionID)
}

func TestRegistryConnectionAggregation(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	assert.Equal(t, models.ConnectionDisconnected, r.Connection("a", "b").State)

	healthy, err := r.Start(context.Background(), "healthy", models.EndpointResources, "h1", SessionConfig{
		Interval: time.Second,
		Fetch:    okFetch,
	})
	require.NoError(t, err)
	drain(healthy)

	require.Eventually(t, func() bool {
		return r.Connection("healthy").State == models.ConnectionLive
	}, 3*time.Second, 10*time.Millisecond)

	flaky, err := r.Start(context.Background(), "flaky", models.EndpointBookings, "h1", SessionConfig{
		Interval: time.Second,
		Backoff:  Policy{Base: 5 * time.Millisecond, Max: 20 * time.Millisecond},
		Fetch:    failFetch,
	})
	require.NoError(t, err)
	drain(flaky)

	require.Eventually(t, func() bool {
		st := r.Connection("healthy", "flaky")
		return st.State == models.ConnectionReconnecting && st.RetryCount > 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRegistryStopAll(t *testing.T) {
	r := NewRegistry(nil)
	for _, id := range []string{"one", "two"} {
		s, err := r.Start(context.Background(), id, models.EndpointResources, "h1", SessionConfig{
			Interval: time.Second,
			Fetch:    okFetch,
		})
		require.NoError(t, err)
		drain(s)
	}

	r.StopAll()
	assert.Empty(t, r.Status())
}

func TestRegistryPruneFinished(t *testing.T) {
	r := NewRegistry(nil)
	defer r.StopAll()

	gone, err := r.Start(context.Background(), "gone", models.EndpointResources, "h1", SessionConfig{
		Interval: time.Second,
		Fetch: func(ctx context.Context) (*models.FetchResult, error) {
			return nil, NewEndpointUnavailable("endpoint retired")
		},
	})
	require.NoError(t, err)
	drain(gone)

	live, err := r.Start(context.Background(), "live", models.EndpointResources, "h1", SessionConfig{
		Interval: time.Second,
		Fetch:    okFetch,
	})
	require.NoError(t, err)
	drain(live)

	require.Eventually(t, func() bool {
		return gone.Status().Cancelled
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"gone"}, r.PruneFinished())
	_, ok := r.Get("gone")
	assert.False(t, ok)
	_, ok = r.Get("live")
	assert.True(t, ok)
}

func TestRegistryTokenRotation(t *testing.T) {
	r := NewRegistry(nil)
	assert.Empty(t, r.Token())
	r.SetAuthToken("bearer-123")
	assert.Equal(t, "bearer-123", r.Token())
}
