package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/metrics"
	"github.com/partnerportal/portal/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type resetCall struct {
	email string
	token string
}

type fakeNotifier struct {
	mu            sync.Mutex
	fail          bool
	welcome       []string
	resets        []resetCall
	confirmations []string
}

func (f *fakeNotifier) SendWelcome(_ context.Context, email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcome = append(f.welcome, email)
	return !f.fail
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, resetCall{email: email, token: token})
	return !f.fail
}

func (f *fakeNotifier) SendPasswordResetConfirmation(_ context.Context, email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, email)
	return !f.fail
}

func (f *fakeNotifier) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeNotifier) counts() (welcome, resets, confirmations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.welcome), len(f.resets), len(f.confirmations)
}

func (f *fakeNotifier) lastReset(t *testing.T) resetCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.resets)
	return f.resets[len(f.resets)-1]
}

type harness struct {
	store        *repository.MemoryStore
	clock        *fakeClock
	tokens       *auth.TokenService
	hasher       *auth.Argon2Hasher
	notifier     *fakeNotifier
	tasks        *Tasks
	metrics      *metrics.InMemoryRecorder
	auth         *AuthService
	reset        *ResetService
	integrations *IntegrationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(testSecret),
		Issuer: "partner-portal",
		Now:    clock.Now,
	})
	require.NoError(t, err)

	hasher, err := auth.NewArgon2Hasher(auth.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1})
	require.NoError(t, err)

	h := &harness{
		store:    repository.NewMemoryStore(),
		clock:    clock,
		tokens:   tokens,
		hasher:   hasher,
		notifier: &fakeNotifier{},
		tasks:    NewTasks(logger),
		metrics:  metrics.NewInMemory(),
	}

	h.auth = NewAuthService(h.store, hasher, tokens, h.notifier, h.tasks, h.metrics, logger)
	h.auth.now = clock.Now
	h.reset = NewResetService(h.store, hasher, tokens, h.notifier, h.tasks, h.metrics, logger)
	h.reset.now = clock.Now
	h.integrations = NewIntegrationService(h.store, nil, 0, h.metrics, logger)
	h.integrations.now = clock.Now

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.tasks.Wait(ctx)
	})

	return h
}

// drain waits for background notifications.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.tasks.Wait(ctx))
}

func (h *harness) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := h.auth.Register(context.Background(), email, password)
	require.NoError(t, err)
	return res
}
