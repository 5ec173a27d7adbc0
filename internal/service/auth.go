// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/metrics"
	"github.com/partnerportal/portal/internal/model"
	"github.com/partnerportal/portal/internal/notify"
	"github.com/partnerportal/portal/internal/repository"
)

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User        model.UserResponse `json:"user"`
	AccessToken string             `json:"access_token"`
}

// AuthService handles registration, login and profile lookups.
type AuthService struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   *auth.TokenService
	notifier notify.Notifier
	tasks    *Tasks
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users UserStore,
	hasher PasswordHasher,
	tokens *auth.TokenService,
	notifier notify.Notifier,
	tasks *Tasks,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		tasks:    tasks,
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates an account and returns a session token for it.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if !validPassword(password) {
		return nil, fail("AUTH_WEAK_PASSWORD", "Password must be between 8 and 128 characters", ErrInvalidInput)
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		s.metrics.IncRegistration(metrics.OutcomeConflict)
		return nil, fail("AUTH_EMAIL_TAKEN", MsgEmailTaken, ErrConflict)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "register lookup").Wrap(err)
	}

	digest, err := s.hash(password)
	if err != nil {
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           newID(now),
		Email:        email,
		PasswordHash: digest,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// Lost a race with a concurrent registration.
			s.metrics.IncRegistration(metrics.OutcomeConflict)
			return nil, fail("AUTH_EMAIL_TAKEN", MsgEmailTaken, ErrConflict)
		}
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "create user").Wrap(err)
	}

	s.tasks.Notify(ctx, notify.KindWelcome, func(ctx context.Context) bool {
		return s.notifier.SendWelcome(ctx, user.Email)
	})

	token, err := s.tokens.IssueSession(user.ID, user.Email)
	if err != nil {
		s.metrics.IncRegistration(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "issue session").Wrap(err)
	}

	s.metrics.IncRegistration(metrics.OutcomeSuccess)
	s.logger.Info("user registered", "user_id", user.ID)

	return &AuthResult{User: user.ToResponse(), AccessToken: token}, nil
}

// Login checks credentials and returns a fresh session token. Unknown
// emails, wrong passwords and inactive accounts fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncLogin(metrics.OutcomeError)
			return nil, oops.In("service").With("operation", "login lookup").Wrap(err)
		}
		// Equalize timing with the known-user path.
		s.hasher.Verify(password, s.hasher.DummyHash())
		s.metrics.IncLogin(metrics.OutcomeInvalidCredentials)
		return nil, fail("AUTH_INVALID_CREDENTIALS", MsgInvalidCredentials, ErrUnauthorized)
	}

	if !s.hasher.Verify(password, user.PasswordHash) || !user.IsActive {
		s.metrics.IncLogin(metrics.OutcomeInvalidCredentials)
		return nil, fail("AUTH_INVALID_CREDENTIALS", MsgInvalidCredentials, ErrUnauthorized)
	}

	token, err := s.tokens.IssueSession(user.ID, user.Email)
	if err != nil {
		s.metrics.IncLogin(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "issue session").Wrap(err)
	}

	s.metrics.IncLogin(metrics.OutcomeSuccess)
	return &AuthResult{User: user.ToResponse(), AccessToken: token}, nil
}

// GetProfile returns the account behind a verified session.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*model.UserResponse, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fail("AUTH_USER_NOT_FOUND", MsgUserNotFound, ErrUnauthorized)
		}
		return nil, oops.In("service").With("operation", "get profile").Wrap(err)
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *AuthService) hash(password string) (string, error) {
	return hashPassword(s.hasher, s.metrics, s.now, password)
}

func hashPassword(h PasswordHasher, recorder metrics.Recorder, now func() time.Time, password string) (string, error) {
	start := now()
	digest, err := h.Hash(password)
	recorder.ObserveHashDuration(now().Sub(start))
	if err != nil {
		return "", oops.In("service").With("operation", "hash password").Wrap(err)
	}
	return digest, nil
}
