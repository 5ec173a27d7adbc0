package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnerportal/portal/internal/model"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewWithClient(client)
}

func testIntegration() *model.Integration {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	return &model.Integration{
		ID:        "01HINT",
		String:    "acme",
		APIKey:    "ppk_" + strings.Repeat("ab", 32),
		Fee:       model.Amount(2550),
		RPM:       200,
		OwnerID:   "01HUSER",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCache_IntegrationRoundTrip(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	ctx := context.Background()
	in := testIntegration()

	_, err := c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetIntegration(ctx, in))

	got, err := c.GetIntegration(ctx, in.APIKey)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, in.APIKey, "redis key must not contain the API key")
		val, err := mr.Get(key)
		require.NoError(t, err)
		assert.NotContains(t, val, in.APIKey, "redis value must not contain the API key")
	}
}

func TestCache_IntegrationTTL(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	ctx := context.Background()
	in := testIntegration()

	require.NoError(t, c.SetIntegration(ctx, in))
	mr.FastForward(IntegrationTTL + time.Second)

	_, err := c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_DeleteIntegration(t *testing.T) {
	t.Parallel()

	_, c := newTestCache(t)
	ctx := context.Background()
	in := testIntegration()

	require.NoError(t, c.SetIntegration(ctx, in))
	require.NoError(t, c.DeleteIntegration(ctx, in.APIKey))

	_, err := c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_RevokedKeyCannotBeRecached(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	ctx := context.Background()
	in := testIntegration()

	require.NoError(t, c.SetIntegration(ctx, in))
	require.NoError(t, c.RevokeIntegration(ctx, in.APIKey))

	_, err := c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrRevoked)

	// A lookup that read the store before the revocation tries to cache it.
	require.NoError(t, c.SetIntegration(ctx, in))
	_, err = c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrRevoked)

	// Metadata eviction leaves the tombstone alone.
	require.NoError(t, c.DeleteIntegration(ctx, in.APIKey))
	_, err = c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrRevoked)

	ttl := mr.TTL(integrationKey(in.APIKey))
	assert.GreaterOrEqual(t, ttl, IntegrationTTL, "tombstone must outlive any racing cache write")

	mr.FastForward(RevocationTTL + time.Second)
	_, err = c.GetIntegration(ctx, in.APIKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_SetIntegrationKeepsExistingEntry(t *testing.T) {
	t.Parallel()

	_, c := newTestCache(t)
	ctx := context.Background()
	in := testIntegration()

	require.NoError(t, c.SetIntegration(ctx, in))

	stale := *in
	stale.String = "stale"
	require.NoError(t, c.SetIntegration(ctx, &stale))

	got, err := c.GetIntegration(ctx, in.APIKey)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.String)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	in := testIntegration()

	require.NoError(t, mr.Set(integrationKey(in.APIKey), "{not json"))

	_, err := c.GetIntegration(context.Background(), in.APIKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_BackendErrorIsNotMiss(t *testing.T) {
	t.Parallel()

	mr, c := newTestCache(t)
	mr.SetError("ERR backend unavailable")

	_, err := c.GetIntegration(context.Background(), "ppk_any")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}

func TestCache_Ping(t *testing.T) {
	t.Parallel()

	_, c := newTestCache(t)
	assert.NoError(t, c.Ping(context.Background()))
}
