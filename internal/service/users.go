package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/healthcare-coordination/internal/model"
	"github.com/iliyamo/healthcare-coordination/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Me returns the public view of the user identified by an access token.
func (s *AuthService) Me(ctx context.Context, userID uint64) (model.PublicUser, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateProfile applies a partial profile update.  Email, role and
// password cannot be changed here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint64, in ProfileInput) (model.PublicUser, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return model.PublicUser{}, err
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	in.apply(&u)
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return model.PublicUser{}, storageErr("update profile", err)
	}
	return u.Public(), nil
}

// ListUsers pages through users, optionally filtered by role.  A limit
// outside 1..100 falls back to the default page size.
func (s *AuthService) ListUsers(ctx context.Context, role string, limit, offset int) ([]model.PublicUser, error) {
	r := model.Role(strings.ToLower(strings.TrimSpace(role)))
	if r != "" && !r.Valid() {
		return nil, validationErr("role: must be one of %s", roleList())
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, r, limit, offset)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// SetActive activates or deactivates a user.  actorID is the admin making
// the change; admins cannot deactivate themselves.  Outstanding access
// tokens stay valid until expiry, refresh is refused immediately.
func (s *AuthService) SetActive(ctx context.Context, actorID, userID uint64, active bool) (model.PublicUser, error) {
	if actorID == userID && !active {
		return model.PublicUser{}, validationErr("you cannot deactivate your own account")
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return model.PublicUser{}, storageErr("set active", err)
	}
	u.IsActive = active
	s.logger.Info("user status changed", "user_id", userID, "is_active", active, "by", actorID)
	return u.Public(), nil
}

// DeleteUser removes a user and its role profile.
func (s *AuthService) DeleteUser(ctx context.Context, actorID, userID uint64) error {
	if actorID == userID {
		return validationErr("you cannot delete your own account")
	}
	err := s.users.Delete(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return storageErr("delete user", err)
	}
	s.logger.Info("user deleted", "user_id", userID, "by", actorID)
	return nil
}

func (s *AuthService) loadUser(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, storageErr("load user", err)
	}
	return u, nil
}
