package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/cache"
	"github.com/partnerportal/portal/internal/metrics"
	"github.com/partnerportal/portal/internal/model"
	"github.com/partnerportal/portal/internal/repository"
)

// IntegrationPatch lists the fields an owner may change. Nil means unchanged.
type IntegrationPatch struct {
	String *string
}

// IntegrationService manages integrations and their API keys.
type IntegrationService struct {
	store   IntegrationStore
	cache   IntegrationCache
	quota   int
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
	keygen  func() (string, error)
}

// NewIntegrationService creates a new IntegrationService. lookups may be nil
// to disable API-key caching.
func NewIntegrationService(
	store IntegrationStore,
	lookups IntegrationCache,
	quota int,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *IntegrationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if quota <= 0 {
		quota = model.DefaultIntegrationQuota
	}
	return &IntegrationService{
		store:   store,
		cache:   lookups,
		quota:   quota,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
		keygen:  auth.GenerateAPIKey,
	}
}

// Quota returns the per-owner integration limit.
func (s *IntegrationService) Quota() int {
	return s.quota
}

// Create registers a new integration for ownerID under label.
func (s *IntegrationService) Create(ctx context.Context, ownerID, label string) (*model.IntegrationResponse, error) {
	str := model.NormalizeIntegrationString(label)
	if !model.ValidIntegrationString(str) {
		s.metrics.IncIntegrationCreated(metrics.OutcomeInvalid)
		return nil, invalidStringError()
	}

	count, err := s.store.CountIntegrationsByOwner(ctx, ownerID)
	if err != nil {
		s.metrics.IncIntegrationCreated(metrics.OutcomeError)
		return nil, oops.In("service").With("operation", "count integrations").Wrap(err)
	}
	if count >= s.quota {
		s.metrics.IncIntegrationCreated(metrics.OutcomeQuotaExceeded)
		return nil, s.quotaError()
	}

	if err := s.ensureStringFree(ctx, str, ""); err != nil {
		s.metrics.IncIntegrationCreated(metrics.OutcomeConflict)
		return nil, err
	}

	now := s.now().UTC()
	in := &model.Integration{
		ID:        newID(now),
		String:    str,
		Fee:       model.DefaultIntegrationFee,
		RPM:       model.DefaultIntegrationRPM,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withFreshKey(in, func() error {
		return s.store.CreateIntegration(ctx, in, s.quota)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			s.metrics.IncIntegrationCreated(metrics.OutcomeConflict)
			return nil, err
		case errors.Is(err, repository.ErrQuotaExceeded):
			s.metrics.IncIntegrationCreated(metrics.OutcomeQuotaExceeded)
			return nil, s.quotaError()
		case errors.Is(err, repository.ErrUserNotFound):
			s.metrics.IncIntegrationCreated(metrics.OutcomeError)
			return nil, fail("AUTH_USER_NOT_FOUND", MsgUserNotFound, ErrUnauthorized)
		default:
			s.metrics.IncIntegrationCreated(metrics.OutcomeError)
			return nil, oops.In("service").With("operation", "create integration").Wrap(err)
		}
	}

	s.metrics.IncIntegrationCreated(metrics.OutcomeSuccess)
	s.logger.Info("integration created", "integration_id", in.ID, "owner_id", ownerID)

	resp := in.ToResponse()
	return &resp, nil
}

// List returns ownerID's integrations newest first, without API keys.
func (s *IntegrationService) List(ctx context.Context, ownerID string) ([]model.IntegrationPublicResponse, error) {
	list, err := s.store.ListIntegrationsByOwner(ctx, ownerID)
	if err != nil {
		return nil, oops.In("service").With("operation", "list integrations").Wrap(err)
	}

	out := make([]model.IntegrationPublicResponse, 0, len(list))
	for _, in := range list {
		out = append(out, in.ToPublicResponse())
	}
	return out, nil
}

// Get returns one of ownerID's integrations including its API key.
func (s *IntegrationService) Get(ctx context.Context, ownerID, id string) (*model.IntegrationResponse, error) {
	in, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	resp := in.ToResponse()
	return &resp, nil
}

// Update applies patch to one of ownerID's integrations.
func (s *IntegrationService) Update(ctx context.Context, ownerID, id string, patch IntegrationPatch) (*model.IntegrationResponse, error) {
	in, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if patch.String != nil {
		str := model.NormalizeIntegrationString(*patch.String)
		if !model.ValidIntegrationString(str) {
			return nil, invalidStringError()
		}
		if str != in.String {
			if err := s.ensureStringFree(ctx, str, in.ID); err != nil {
				return nil, err
			}
			in.String = str
		}
	}

	in.UpdatedAt = s.now().UTC()
	if err := s.store.SaveIntegration(ctx, in); err != nil {
		return nil, s.saveError(err, "update integration")
	}

	s.invalidate(ctx, in.APIKey)
	s.metrics.IncIntegrationUpdated()
	s.logger.Info("integration updated", "integration_id", in.ID, "owner_id", ownerID)

	resp := in.ToResponse()
	return &resp, nil
}

// RegenerateAPIKey replaces the API key of one of ownerID's integrations.
// The old key is revoked in the cache first, so it stops authenticating as
// soon as the new key is stored; lookups racing the rotation cannot re-cache it.
func (s *IntegrationService) RegenerateAPIKey(ctx context.Context, ownerID, id string) (*model.IntegrationResponse, error) {
	in, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	oldKey := in.APIKey
	if err := s.revoke(ctx, oldKey); err != nil {
		return nil, err
	}

	in.UpdatedAt = s.now().UTC()
	err = s.withFreshKey(in, func() error {
		return s.store.SaveIntegration(ctx, in)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, s.saveError(err, "regenerate api key")
	}

	s.metrics.IncAPIKeyRegenerated()
	s.logger.Info("api key regenerated", "integration_id", in.ID, "owner_id", ownerID)

	resp := in.ToResponse()
	return &resp, nil
}

// Remove deletes one of ownerID's integrations.
func (s *IntegrationService) Remove(ctx context.Context, ownerID, id string) error {
	in, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.revoke(ctx, in.APIKey); err != nil {
		return err
	}

	if err := s.store.DeleteIntegration(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return fail("INTEGRATION_NOT_FOUND", MsgIntegrationMissing, ErrNotFound)
		}
		return oops.In("service").With("operation", "delete integration").Wrap(err)
	}

	s.metrics.IncIntegrationDeleted()
	s.logger.Info("integration deleted", "integration_id", id, "owner_id", ownerID)
	return nil
}

// ValidateAPIKey resolves the integration that owns key. Cache failures
// fall through to the store.
func (s *IntegrationService) ValidateAPIKey(ctx context.Context, key string) (*model.Integration, error) {
	if !auth.ValidateKeyFormat(key) {
		s.metrics.IncAPIKeyValidation(metrics.OutcomeInvalid, false)
		return nil, forbiddenKeyError()
	}

	if s.cache != nil {
		in, err := s.cache.GetIntegration(ctx, key)
		if err == nil {
			s.metrics.IncAPIKeyValidation(metrics.OutcomeSuccess, true)
			return in, nil
		}
		if errors.Is(err, cache.ErrRevoked) {
			s.metrics.IncAPIKeyValidation(metrics.OutcomeInvalid, true)
			return nil, forbiddenKeyError()
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("api key cache read failed", "error", err)
		}
	}

	in, err := s.store.GetIntegrationByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			s.metrics.IncAPIKeyValidation(metrics.OutcomeInvalid, false)
			return nil, forbiddenKeyError()
		}
		s.metrics.IncAPIKeyValidation(metrics.OutcomeError, false)
		return nil, oops.In("service").With("operation", "validate api key").Wrap(err)
	}

	if s.cache != nil {
		if err := s.cache.SetIntegration(ctx, in); err != nil {
			s.logger.Warn("api key cache write failed", "error", err)
		}
	}

	s.metrics.IncAPIKeyValidation(metrics.OutcomeSuccess, false)
	return in, nil
}

// withFreshKey assigns a new API key to in and runs write. A key collision
// gets exactly one more key before giving up.
func (s *IntegrationService) withFreshKey(in *model.Integration, write func() error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		key, genErr := s.keygen()
		if genErr != nil {
			return oops.In("service").With("operation", "generate api key").Wrap(genErr)
		}
		in.APIKey = key

		err = write()
		if !errors.Is(err, repository.ErrAPIKeyExists) {
			break
		}
		s.logger.Warn("api key collision, regenerating", "integration_id", in.ID, "attempt", attempt+1)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrAPIKeyExists):
		return fail("INTEGRATION_KEY_CONFLICT", "Failed to generate a unique API key. Please try again.", ErrConflict)
	case errors.Is(err, repository.ErrStringExists):
		return fail("INTEGRATION_STRING_TAKEN", MsgStringTaken, ErrConflict)
	default:
		return err
	}
}

func (s *IntegrationService) owned(ctx context.Context, ownerID, id string) (*model.Integration, error) {
	in, err := s.store.GetIntegrationByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return nil, fail("INTEGRATION_NOT_FOUND", MsgIntegrationMissing, ErrNotFound)
		}
		return nil, oops.In("service").With("operation", "get integration").Wrap(err)
	}
	return in, nil
}

func (s *IntegrationService) ensureStringFree(ctx context.Context, str, exceptID string) error {
	existing, err := s.store.GetIntegrationByString(ctx, str)
	switch {
	case errors.Is(err, repository.ErrIntegrationNotFound):
		return nil
	case err != nil:
		return oops.In("service").With("operation", "string lookup").Wrap(err)
	case existing.ID == exceptID:
		return nil
	default:
		return fail("INTEGRATION_STRING_TAKEN", MsgStringTaken, ErrConflict)
	}
}

func (s *IntegrationService) saveError(err error, operation string) error {
	switch {
	case errors.Is(err, repository.ErrIntegrationNotFound):
		return fail("INTEGRATION_NOT_FOUND", MsgIntegrationMissing, ErrNotFound)
	case errors.Is(err, repository.ErrStringExists):
		return fail("INTEGRATION_STRING_TAKEN", MsgStringTaken, ErrConflict)
	case errors.Is(err, repository.ErrAPIKeyExists):
		return fail("INTEGRATION_KEY_CONFLICT", "Failed to generate a unique API key. Please try again.", ErrConflict)
	default:
		return oops.In("service").With("operation", operation).Wrap(err)
	}
}

// revoke tombstones key in the cache before the store stops accepting it.
// A failure aborts the caller so a stale entry cannot outlive the change.
// The tombstone expires on its own, so a write that fails after it only
// rejects the still-stored key until cache.RevocationTTL.
func (s *IntegrationService) revoke(ctx context.Context, key string) error {
	if s.cache == nil || key == "" {
		return nil
	}
	if err := s.cache.RevokeIntegration(ctx, key); err != nil {
		return oops.In("service").With("operation", "revoke api key").Wrap(err)
	}
	return nil
}

// invalidate evicts the cached lookup for key after a metadata change.
func (s *IntegrationService) invalidate(ctx context.Context, key string) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.DeleteIntegration(ctx, key); err != nil {
		s.logger.Warn("api key cache invalidation failed", "error", err)
	}
}

func (s *IntegrationService) quotaError() error {
	return fail("INTEGRATION_QUOTA_EXCEEDED",
		fmt.Sprintf("Maximum number of integrations (%d) reached", s.quota), ErrQuotaExceeded)
}

func invalidStringError() error {
	return fail("INTEGRATION_STRING_INVALID",
		fmt.Sprintf("Integration string must be %d-%d characters of letters, digits or underscores",
			model.MinIntegrationStringLen, model.MaxIntegrationStringLen),
		ErrInvalidInput)
}

func forbiddenKeyError() error {
	return fail("INVALID_API_KEY", MsgInvalidAPIKey, ErrForbidden)
}
