package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnerportal/portal/internal/model"
)

func seedUser(t *testing.T, s *MemoryStore, id, email string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &model.User{ID: id, Email: email, IsActive: true}))
}

func TestMemoryStore_EmailUniqueCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seedUser(t, s, "u1", "ada@example.com")

	err := s.CreateUser(context.Background(), &model.User{ID: "u2", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := s.GetUserByEmail(context.Background(), "Ada@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	seedUser(t, s, "u1", "ada@example.com")

	got, err := s.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	got.PasswordHash = "tampered"

	again, err := s.GetUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, again.PasswordHash)
}

func TestMemoryStore_IntegrationConstraints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")

	require.NoError(t, s.CreateIntegration(ctx, &model.Integration{ID: "i1", String: "acme", APIKey: "k1", OwnerID: "u1"}, 5))

	err := s.CreateIntegration(ctx, &model.Integration{ID: "i2", String: "acme", APIKey: "k2", OwnerID: "u2"}, 5)
	assert.ErrorIs(t, err, ErrStringExists)

	err = s.CreateIntegration(ctx, &model.Integration{ID: "i3", String: "other", APIKey: "k1", OwnerID: "u2"}, 5)
	assert.ErrorIs(t, err, ErrAPIKeyExists)

	err = s.CreateIntegration(ctx, &model.Integration{ID: "i4", String: "ghost", APIKey: "k4", OwnerID: "nobody"}, 5)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryStore_GetIntegrationByOwnerAndString(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")
	require.NoError(t, s.CreateIntegration(ctx, &model.Integration{ID: "i1", String: "acme", APIKey: "k1", OwnerID: "u1"}, 5))

	got, err := s.GetIntegrationByOwnerAndString(ctx, "u1", "acme")
	require.NoError(t, err)
	assert.Equal(t, "i1", got.ID)

	_, err = s.GetIntegrationByOwnerAndString(ctx, "u2", "acme")
	assert.ErrorIs(t, err, ErrIntegrationNotFound)

	_, err = s.GetIntegrationByOwnerAndString(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrIntegrationNotFound)
}

func TestMemoryStore_QuotaUnderConcurrency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1", "a@example.com")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.CreateIntegration(ctx, &model.Integration{
				ID:      fmt.Sprintf("i%d", i),
				String:  fmt.Sprintf("label_%d", i),
				APIKey:  fmt.Sprintf("k%d", i),
				OwnerID: "u1",
			}, 5)
		}(i)
	}
	wg.Wait()
	close(errs)

	created, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		default:
			assert.ErrorIs(t, err, ErrQuotaExceeded)
			rejected++
		}
	}
	assert.Equal(t, 5, created)
	assert.Equal(t, 15, rejected)

	n, err := s.CountIntegrationsByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1", "a@example.com")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, label := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateIntegration(ctx, &model.Integration{
			ID:        label,
			String:    label,
			APIKey:    "k_" + label,
			OwnerID:   "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, 5))
	}

	list, err := s.ListIntegrationsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{list[0].String, list[1].String, list[2].String})
}

func TestMemoryStore_OwnershipScopedWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1", "a@example.com")
	seedUser(t, s, "u2", "b@example.com")
	require.NoError(t, s.CreateIntegration(ctx, &model.Integration{ID: "i1", String: "acme", APIKey: "k1", OwnerID: "u1"}, 5))

	err := s.SaveIntegration(ctx, &model.Integration{ID: "i1", String: "stolen", APIKey: "k1", OwnerID: "u2"})
	assert.ErrorIs(t, err, ErrIntegrationNotFound)

	assert.ErrorIs(t, s.DeleteIntegration(ctx, "u2", "i1"), ErrIntegrationNotFound)
	require.NoError(t, s.DeleteIntegration(ctx, "u1", "i1"))
	assert.ErrorIs(t, s.DeleteIntegration(ctx, "u1", "i1"), ErrIntegrationNotFound)
}

func TestMemoryStore_DeleteUserCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	seedUser(t, s, "u1", "a@example.com")
	require.NoError(t, s.CreateIntegration(ctx, &model.Integration{ID: "i1", String: "acme", APIKey: "k1", OwnerID: "u1"}, 5))

	require.NoError(t, s.DeleteUser(ctx, "u1"))

	_, err := s.GetIntegrationByAPIKey(ctx, "k1")
	assert.ErrorIs(t, err, ErrIntegrationNotFound)
}
