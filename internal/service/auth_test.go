package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnerportal/portal/internal/auth"
)

func TestAuthService_RegisterThenLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	reg := h.register(t, "  Ada@Example.com ", "correct horse")
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.True(t, reg.User.IsActive)
	assert.NotEmpty(t, reg.User.ID)

	claims, err := h.tokens.Verify(reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID())
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, auth.TokenTypeSession, claims.Type)

	login, err := h.auth.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.Equal(t, reg.User.Email, login.User.Email)

	for _, res := range []*AuthResult{reg, login} {
		body, err := json.Marshal(res)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "password")
		assert.NotContains(t, string(body), "$argon2id$")
	}

	stored, err := h.store.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.True(t, h.hasher.Verify("correct horse", stored.PasswordHash))

	snap := h.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Count("registration:success"))
	assert.Equal(t, uint64(1), snap.Count("login:success"))
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t, "ada@example.com", "password-one")

	_, err := h.auth.Register(context.Background(), "ADA@EXAMPLE.COM", "password-two")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, MsgEmailTaken, PublicMessage(err, ""))
}

func TestAuthService_RegisterConcurrentSameEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.auth.Register(context.Background(), "race@example.com", "password123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAuthService_RegisterRejectsBadPasswordLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
	}{
		{name: "too short", password: "short"},
		{name: "too long", password: string(make([]byte, MaxPasswordLength+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			_, err := h.auth.Register(context.Background(), "a@example.com", tt.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com", "correct horse")

	_, wrongPassword := h.auth.Login(ctx, "ada@example.com", "battery staple")
	_, unknownEmail := h.auth.Login(ctx, "nobody@example.com", "correct horse")

	require.ErrorIs(t, wrongPassword, ErrUnauthorized)
	require.ErrorIs(t, unknownEmail, ErrUnauthorized)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, MsgInvalidCredentials, PublicMessage(wrongPassword, ""))
	assert.Equal(t, MsgInvalidCredentials, PublicMessage(unknownEmail, ""))

	assert.Equal(t, uint64(2), h.metrics.Snapshot().Count("login:invalid_credentials"))
}

func TestAuthService_LoginInactiveUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, "ada@example.com", "correct horse")

	user, err := h.store.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, h.store.SaveUser(ctx, user))

	_, err = h.auth.Login(ctx, "ada@example.com", "correct horse")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, MsgInvalidCredentials, PublicMessage(err, ""))
}

func TestAuthService_WelcomeIsBestEffort(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.notifier.setFail(true)

	res, err := h.auth.Register(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	h.drain(t)
	welcome, _, _ := h.notifier.counts()
	assert.Equal(t, 1, welcome)
}

func TestAuthService_GetProfile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	reg := h.register(t, "ada@example.com", "correct horse")

	profile, err := h.auth.GetProfile(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.User, *profile)

	_, err = h.auth.GetProfile(context.Background(), "01HMISSING")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, MsgUserNotFound, PublicMessage(err, ""))
}

func TestAuthService_DistinctUsersGetDistinctIDs(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		res := h.register(t, fmt.Sprintf("user%d@example.com", i), "password123")
		assert.False(t, seen[res.User.ID])
		seen[res.User.ID] = true
	}
}
