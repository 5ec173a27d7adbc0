package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/partnerportal/portal/internal/model"
)

// MemoryStore is an in-process credential store with the same uniqueness
// and quota rules as the PostgreSQL schema. It backs local development
// without DATABASE_URL and the service tests.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	integrations map[string]*model.Integration
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*model.User),
		integrations: make(map[string]*model.Integration),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}

// CreateUser inserts a copy of user.
func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, "") {
		return ErrEmailExists
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// SaveUser persists the mutable fields of an existing user.
func (s *MemoryStore) SaveUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return ErrEmailExists
	}
	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	existing.IsActive = user.IsActive
	existing.UpdatedAt = user.UpdatedAt
	return nil
}

// CountIntegrationsByOwner returns how many integrations ownerID holds.
func (s *MemoryStore) CountIntegrationsByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countOwned(ownerID), nil
}

// CreateIntegration inserts a copy of in, enforcing quota and uniqueness atomically.
func (s *MemoryStore) CreateIntegration(_ context.Context, in *model.Integration, quota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[in.OwnerID]; !ok {
		return ErrUserNotFound
	}
	if s.countOwned(in.OwnerID) >= quota {
		return ErrQuotaExceeded
	}
	if err := s.checkIntegrationUnique(in); err != nil {
		return err
	}
	cp := *in
	s.integrations[in.ID] = &cp
	return nil
}

// GetIntegrationByOwnerAndID retrieves an integration scoped to its owner.
func (s *MemoryStore) GetIntegrationByOwnerAndID(_ context.Context, ownerID, id string) (*model.Integration, error) {
	return s.findIntegration(func(in *model.Integration) bool {
		return in.OwnerID == ownerID && in.ID == id
	})
}

// GetIntegrationByOwnerAndString retrieves an owner's integration by label.
func (s *MemoryStore) GetIntegrationByOwnerAndString(_ context.Context, ownerID, str string) (*model.Integration, error) {
	return s.findIntegration(func(in *model.Integration) bool {
		return in.OwnerID == ownerID && in.String == str
	})
}

// GetIntegrationByString retrieves an integration by label across all owners.
func (s *MemoryStore) GetIntegrationByString(_ context.Context, str string) (*model.Integration, error) {
	return s.findIntegration(func(in *model.Integration) bool {
		return in.String == str
	})
}

// GetIntegrationByAPIKey retrieves the integration holding apiKey.
func (s *MemoryStore) GetIntegrationByAPIKey(_ context.Context, apiKey string) (*model.Integration, error) {
	return s.findIntegration(func(in *model.Integration) bool {
		return in.APIKey == apiKey
	})
}

// ListIntegrationsByOwner returns an owner's integrations, newest first.
func (s *MemoryStore) ListIntegrationsByOwner(_ context.Context, ownerID string) ([]*model.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Integration, 0)
	for _, in := range s.integrations {
		if in.OwnerID == ownerID {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SaveIntegration persists the mutable fields of an owned integration.
func (s *MemoryStore) SaveIntegration(_ context.Context, in *model.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.integrations[in.ID]
	if !ok || existing.OwnerID != in.OwnerID {
		return ErrIntegrationNotFound
	}
	if err := s.checkIntegrationUnique(in); err != nil {
		return err
	}
	existing.String = in.String
	existing.APIKey = in.APIKey
	existing.Fee = in.Fee
	existing.RPM = in.RPM
	existing.UpdatedAt = in.UpdatedAt
	return nil
}

// DeleteIntegration hard-deletes an owned integration.
func (s *MemoryStore) DeleteIntegration(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.integrations[id]
	if !ok || existing.OwnerID != ownerID {
		return ErrIntegrationNotFound
	}
	delete(s.integrations, id)
	return nil
}

// DeleteUser removes a user and cascades to their integrations.
func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	for key, in := range s.integrations {
		if in.OwnerID == id {
			delete(s.integrations, key)
		}
	}
	return nil
}

func (s *MemoryStore) findIntegration(match func(*model.Integration) bool) (*model.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, in := range s.integrations {
		if match(in) {
			cp := *in
			return &cp, nil
		}
	}
	return nil, ErrIntegrationNotFound
}

// emailTaken must be called with s.mu held.
func (s *MemoryStore) emailTaken(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// countOwned must be called with s.mu held.
func (s *MemoryStore) countOwned(ownerID string) int {
	n := 0
	for _, in := range s.integrations {
		if in.OwnerID == ownerID {
			n++
		}
	}
	return n
}

// checkIntegrationUnique must be called with s.mu held.
func (s *MemoryStore) checkIntegrationUnique(in *model.Integration) error {
	for id, other := range s.integrations {
		if id == in.ID {
			continue
		}
		if other.String == in.String {
			return ErrStringExists
		}
		if other.APIKey == in.APIKey {
			return ErrAPIKeyExists
		}
	}
	return nil
}
