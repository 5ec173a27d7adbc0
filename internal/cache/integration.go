package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/model"
)

const (
	// integrationKeyPrefix namespaces API-key lookups. The suffix is
	// auth.QuickHash of the key, so the key itself never lands in Redis.
	integrationKeyPrefix = "integration:key:"
	// IntegrationTTL bounds how long a cached lookup is served.
	IntegrationTTL = 5 * time.Minute
	// RevocationTTL keeps a revoked key's tombstone alive for at least as
	// long as any lookup that raced the revocation could try to cache it.
	RevocationTTL = 2 * IntegrationTTL

	revokedMarker = "revoked"
)

// evictScript deletes a cached lookup unless it is a revocation tombstone.
var evictScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)

// ErrRevoked is returned by GetIntegration for a key that was rotated out or
// whose integration was deleted.
var ErrRevoked = errors.New("api key revoked")

// cachedIntegration is the Redis representation. It omits the API key.
type cachedIntegration struct {
	ID        string       `json:"id"`
	String    string       `json:"string"`
	Fee       model.Amount `json:"fee"`
	RPM       int          `json:"rpm"`
	OwnerID   string       `json:"owner_id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func integrationKey(apiKey string) string {
	return integrationKeyPrefix + auth.QuickHash(apiKey)
}

// GetIntegration returns the integration cached for apiKey, ErrRevoked for a
// revoked key, or ErrCacheMiss.
func (c *Cache) GetIntegration(ctx context.Context, apiKey string) (*model.Integration, error) {
	data, err := c.client.Get(ctx, integrationKey(apiKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, oops.In("cache").With("operation", "get integration").Wrap(err)
	}
	if string(data) == revokedMarker {
		return nil, ErrRevoked
	}

	var cached cachedIntegration
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted entry - treat as miss
		return nil, ErrCacheMiss
	}

	return &model.Integration{
		ID:        cached.ID,
		String:    cached.String,
		APIKey:    apiKey,
		Fee:       cached.Fee,
		RPM:       cached.RPM,
		OwnerID:   cached.OwnerID,
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
	}, nil
}

// SetIntegration caches in under its API key. It never overwrites an existing
// entry, so a lookup that read the store before a revocation cannot bring the
// revoked key back.
func (c *Cache) SetIntegration(ctx context.Context, in *model.Integration) error {
	data, err := json.Marshal(cachedIntegration{
		ID:        in.ID,
		String:    in.String,
		Fee:       in.Fee,
		RPM:       in.RPM,
		OwnerID:   in.OwnerID,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	})
	if err != nil {
		return oops.In("cache").With("operation", "marshal integration").Wrap(err)
	}

	if err := c.client.SetNX(ctx, integrationKey(in.APIKey), data, IntegrationTTL).Err(); err != nil {
		return oops.In("cache").With("operation", "set integration").Wrap(err)
	}
	return nil
}

// DeleteIntegration evicts the cached lookup for apiKey so the next lookup
// repopulates it. A revocation tombstone is left in place.
func (c *Cache) DeleteIntegration(ctx context.Context, apiKey string) error {
	if err := evictScript.Run(ctx, c.client, []string{integrationKey(apiKey)}, revokedMarker).Err(); err != nil {
		return oops.In("cache").With("operation", "delete integration").Wrap(err)
	}
	return nil
}

// RevokeIntegration replaces the entry for apiKey with a tombstone that
// outlives any in-flight lookup of the key.
func (c *Cache) RevokeIntegration(ctx context.Context, apiKey string) error {
	if err := c.client.Set(ctx, integrationKey(apiKey), revokedMarker, RevocationTTL).Err(); err != nil {
		return oops.In("cache").With("operation", "revoke integration").Wrap(err)
	}
	return nil
}
