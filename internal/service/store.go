package service

import (
	"context"

	"github.com/partnerportal/portal/internal/model"
)

// UserStore persists portal accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SaveUser(ctx context.Context, user *model.User) error
}

// IntegrationStore persists integrations.
type IntegrationStore interface {
	CountIntegrationsByOwner(ctx context.Context, ownerID string) (int, error)
	CreateIntegration(ctx context.Context, in *model.Integration, quota int) error
	GetIntegrationByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Integration, error)
	GetIntegrationByOwnerAndString(ctx context.Context, ownerID, s string) (*model.Integration, error)
	GetIntegrationByString(ctx context.Context, s string) (*model.Integration, error)
	GetIntegrationByAPIKey(ctx context.Context, apiKey string) (*model.Integration, error)
	ListIntegrationsByOwner(ctx context.Context, ownerID string) ([]*model.Integration, error)
	SaveIntegration(ctx context.Context, in *model.Integration) error
	DeleteIntegration(ctx context.Context, ownerID, id string) error
}

// CredentialStore is satisfied by repository.Repository and repository.MemoryStore.
type CredentialStore interface {
	UserStore
	IntegrationStore
}

// IntegrationCache caches API-key lookups. cache.Cache satisfies it.
// SetIntegration must not overwrite an entry written by RevokeIntegration.
type IntegrationCache interface {
	GetIntegration(ctx context.Context, apiKey string) (*model.Integration, error)
	SetIntegration(ctx context.Context, in *model.Integration) error
	DeleteIntegration(ctx context.Context, apiKey string) error
	RevokeIntegration(ctx context.Context, apiKey string) error
}

// PasswordHasher derives and checks password digests. auth.Argon2Hasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	DummyHash() string
}
