// Package servicetest provides an in-memory user store for tests of the
// service and HTTP layers.
package servicetest

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/healthcare-coordination/internal/model"
	"github.com/iliyamo/healthcare-coordination/internal/repository"
)

// MemStore is an in-memory user store with the same email uniqueness and
// all-or-nothing profile writes as the MySQL repository.  Setting FailWith
// makes every read and create fail with that error.
type MemStore struct {
	mu       sync.Mutex
	nextID   uint64
	Users    map[uint64]model.User
	Profiles map[uint64]model.RoleProfile
	FailWith error
}

func NewMemStore() *MemStore {
	return &MemStore{Users: map[uint64]model.User{}, Profiles: map[uint64]model.RoleProfile{}}
}

func (m *MemStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.FailWith != nil {
		return false, m.FailWith
	}
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *MemStore) CreateWithProfile(ctx context.Context, u model.User, profile model.RoleProfile) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	u.Email = repository.NormalizeEmail(u.Email)
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	m.Users[u.ID] = u
	if profile != nil {
		m.Profiles[u.ID] = profile
	}
	return u.ID, nil
}

func (m *MemStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return model.User{}, m.FailWith
	}
	email = repository.NormalizeEmail(email)
	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *MemStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return model.User{}, m.FailWith
	}
	u, ok := m.Users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *MemStore) List(ctx context.Context, role model.Role, limit, offset int) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.User{}
	for id := uint64(1); id <= m.nextID; id++ {
		u, ok := m.Users[id]
		if !ok || (role != "" && u.Role != role) {
			continue
		}
		out = append(out, u)
	}
	if offset >= len(out) {
		return []model.User{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) UpdateProfile(ctx context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.Users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.FullName = u.FullName
	existing.PhoneNumber = u.PhoneNumber
	existing.DateOfBirth = u.DateOfBirth
	existing.Gender = u.Gender
	existing.PreferredLanguage = u.PreferredLanguage
	m.Users[u.ID] = existing
	return nil
}

func (m *MemStore) SetActive(ctx context.Context, id uint64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	m.Users[id] = u
	return nil
}

func (m *MemStore) Delete(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.Users, id)
	delete(m.Profiles, id)
	return nil
}
