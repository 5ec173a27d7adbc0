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

// MessageResult carries a user-facing confirmation.
type MessageResult struct {
	Message string `json:"message"`
}

// ResetTokenStatus reports whether a reset token is usable.
type ResetTokenStatus struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"message,omitempty"`
}

// ResetService runs the forgot-password flow.
type ResetService struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   *auth.TokenService
	notifier notify.Notifier
	tasks    *Tasks
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewResetService creates a new ResetService.
func NewResetService(
	users UserStore,
	hasher PasswordHasher,
	tokens *auth.TokenService,
	notifier notify.Notifier,
	tasks *Tasks,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *ResetService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ResetService{
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

// RequestReset mails a reset link when email belongs to an account. The
// result is the same whether or not it does.
func (s *ResetService) RequestReset(ctx context.Context, email string) (*MessageResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn("password reset requested for unknown email")
			s.metrics.IncPasswordResetRequest(metrics.OutcomeUnknownEmail)
			return &MessageResult{Message: MsgResetRequested}, nil
		}
		s.metrics.IncPasswordResetRequest(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "reset lookup").Wrap(err)
	}

	token, err := s.tokens.IssuePasswordReset(user.ID, user.Email)
	if err != nil {
		s.metrics.IncPasswordResetRequest(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "issue reset token").Wrap(err)
	}

	if !s.notifier.SendPasswordReset(ctx, user.Email, token) {
		s.logger.Error("failed to send password reset email", "user_id", user.ID)
		s.metrics.IncPasswordResetRequest(metrics.OutcomeDeliveryFailed)
		return nil, fail("RESET_DELIVERY_FAILED", MsgDeliveryFailed, ErrDeliveryFailed)
	}

	s.logger.Info("password reset email sent", "user_id", user.ID)
	s.metrics.IncPasswordResetRequest(metrics.OutcomeSuccess)
	return &MessageResult{Message: MsgResetRequested}, nil
}

// ValidateResetToken checks a reset token without consuming it. It never
// returns an error; failures are reported through Reason.
func (s *ResetService) ValidateResetToken(ctx context.Context, token string) ResetTokenStatus {
	if _, err := s.resolve(ctx, token); err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			return ResetTokenStatus{Reason: MsgResetExpired}
		default:
			return ResetTokenStatus{Reason: PublicMessage(err, MsgResetInvalid)}
		}
	}
	return ResetTokenStatus{Valid: true}
}

// ResetPassword sets a new password for the account named by token.
func (s *ResetService) ResetPassword(ctx context.Context, token, newPassword string) (*MessageResult, error) {
	user, err := s.resolve(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			s.metrics.IncPasswordReset(metrics.OutcomeExpired)
		case errors.Is(err, ErrInvalidToken):
			s.metrics.IncPasswordReset(metrics.OutcomeInvalid)
		default:
			s.metrics.IncPasswordReset(metrics.OutcomeError)
		}
		return nil, err
	}

	if !validPassword(newPassword) {
		return nil, fail("AUTH_WEAK_PASSWORD", "Password must be between 8 and 128 characters", ErrInvalidInput)
	}

	digest, err := hashPassword(s.hasher, s.metrics, s.now, newPassword)
	if err != nil {
		s.metrics.IncPasswordReset(metrics.OutcomeError)
		return nil, err
	}

	user.PasswordHash = digest
	user.UpdatedAt = s.now().UTC()
	if err := s.users.SaveUser(ctx, user); err != nil {
		s.metrics.IncPasswordReset(metrics.OutcomeError)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fail("RESET_TOKEN_INVALID", MsgResetInvalid, ErrInvalidToken)
		}
		return nil, oops.In("service").With("operation", "save password").Wrap(err)
	}

	email := user.Email
	s.tasks.Notify(ctx, notify.KindPasswordResetConfirmation, func(ctx context.Context) bool {
		return s.notifier.SendPasswordResetConfirmation(ctx, email)
	})

	s.logger.Info("password reset completed", "user_id", user.ID)
	s.metrics.IncPasswordReset(metrics.OutcomeSuccess)
	return &MessageResult{Message: MsgResetDone}, nil
}

// resolve verifies a reset token and loads its user. The stored email must
// still match the one the token was issued for.
func (s *ResetService) resolve(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, fail("RESET_TOKEN_EXPIRED", MsgResetExpiredRetry, ErrExpiredToken)
		}
		return nil, fail("RESET_TOKEN_INVALID", MsgResetInvalid, ErrInvalidToken)
	}

	if claims.Type != auth.TokenTypePasswordReset {
		return nil, fail("RESET_TOKEN_WRONG_TYPE", MsgResetWrongType, ErrInvalidToken)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fail("RESET_TOKEN_INVALID", MsgResetInvalid, ErrInvalidToken)
		}
		return nil, oops.In("service").With("operation", "reset user lookup").Wrap(err)
	}

	if NormalizeEmail(user.Email) != NormalizeEmail(claims.Email) {
		return nil, fail("RESET_TOKEN_INVALID", MsgResetInvalid, ErrInvalidToken)
	}

	return user, nil
}
