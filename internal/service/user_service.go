package service

import (
	"errors"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/security"
)

var ErrInvalidRole = errors.New("invalid role")

// UserUpdate carries the mutable profile fields. Nil means "leave as is".
type UserUpdate struct {
	Name  *string
	Email *string
	Role  *string
}

type UserService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   *security.PasswordHasher
}

func NewUserService(users repository.UserRepository, sessions repository.SessionRepository, hasher *security.PasswordHasher) *UserService {
	return &UserService{users: users, sessions: sessions, hasher: hasher}
}

func (s *UserService) List(page repository.PageRequest, search string) (*repository.PageResult[domain.User], error) {
	return s.users.ListPaged(page, search)
}

func (s *UserService) Get(id uint) (*domain.User, error) {
	return s.users.FindByID(id)
}

// Update edits profile fields. A role change takes effect on the target's
// very next request: validation re-reads the user row, so no session revoke
// is needed for demotions.
func (s *UserService) Update(id uint, update UserUpdate) (*domain.User, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Role != nil {
		if !domain.ValidRole(*update.Role) {
			return nil, ErrInvalidRole
		}
		user.Role = *update.Role
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword rehashes the password and kills every open session for the
// user. Anyone holding an old token is logged out immediately. The current
// password is checked only when verifyCurrent is set; admins resetting
// someone else's account don't know it.
func (s *UserService) ChangePassword(id uint, currentPassword, newPassword string, verifyCurrent bool) error {
	user, err := s.users.FindByID(id)
	if err != nil {
		return err
	}
	if verifyCurrent && !s.hasher.Verify(user.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(id, hash); err != nil {
		return err
	}
	return s.sessions.RevokeAllForUser(id)
}

// Deactivate disables the account and revokes all of its sessions, so the
// ledger state matches what validation already enforces for inactive owners.
func (s *UserService) Deactivate(id uint) error {
	if err := s.users.SetActive(id, false); err != nil {
		return err
	}
	return s.sessions.RevokeAllForUser(id)
}

// Reactivate re-enables the account. Old sessions stay revoked; the user
// logs in again.
func (s *UserService) Reactivate(id uint) error {
	return s.users.SetActive(id, true)
}
