package service

import (
	"errors"
	"testing"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/security"
)

func newUserHarness(t *testing.T) (*UserService, *AuthService, *inMemorySessionRepo) {
	t.Helper()
	users := newInMemoryUserRepo()
	sessions := newInMemorySessionRepo(users)
	logs := &inMemoryLoginLogRepo{}
	tokens := security.NewTokenManager("esp32-backend-test", testSigningSecret)
	hasher := security.NewPasswordHasher(4)
	auth := NewAuthService(users, sessions, logs, tokens, hasher, time.Hour, 7*24*time.Hour)
	return NewUserService(users, sessions, hasher), auth, sessions
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	svc, auth, sessions := newUserHarness(t)
	user := registerTestUser(t, auth, "ana@example.com")

	first, err := auth.Login("ana@example.com", "s3cret-pass", "", "device-a")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := auth.Login("ana@example.com", "s3cret-pass", "", "device-b")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := svc.ChangePassword(user.ID, "wrong-pass", "new-pass", true); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: expected ErrInvalidCredentials, got %v", err)
	}

	if err := svc.ChangePassword(user.ID, "s3cret-pass", "new-pass", true); err != nil {
		t.Fatalf("change password: %v", err)
	}

	for _, token := range []string{first.Token, second.Token} {
		if _, err := sessions.FindActiveByToken(token); !errors.Is(err, repository.ErrSessionNotFound) {
			t.Fatalf("session must be dead after password change, got %v", err)
		}
	}

	// Old password is no longer accepted, the new one is.
	if _, err := auth.Login("ana@example.com", "s3cret-pass", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login("ana@example.com", "new-pass", "", ""); err != nil {
		t.Fatalf("new password login: %v", err)
	}
}

func TestChangePasswordWithoutCurrentVerification(t *testing.T) {
	svc, auth, sessions := newUserHarness(t)
	user := registerTestUser(t, auth, "dario@example.com")

	login, err := auth.Login("dario@example.com", "s3cret-pass", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// An admin resetting the account does not know the current password.
	if err := svc.ChangePassword(user.ID, "", "reset-by-admin", false); err != nil {
		t.Fatalf("admin reset: %v", err)
	}

	if _, err := sessions.FindActiveByToken(login.Token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("sessions must die on admin reset too, got %v", err)
	}
	if _, err := auth.Login("dario@example.com", "s3cret-pass", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login("dario@example.com", "reset-by-admin", "", ""); err != nil {
		t.Fatalf("reset password login: %v", err)
	}
}

func TestDeactivateRevokesAndReactivateDoesNotRestore(t *testing.T) {
	svc, auth, sessions := newUserHarness(t)
	user := registerTestUser(t, auth, "bruno@example.com")

	login, err := auth.Login("bruno@example.com", "s3cret-pass", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Deactivate(user.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := sessions.FindActiveByToken(login.Token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("session must die with the account, got %v", err)
	}

	if err := svc.Reactivate(user.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	// Reactivation does not resurrect revoked sessions.
	if _, err := sessions.FindActiveByToken(login.Token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("old session must stay revoked after reactivation, got %v", err)
	}
	if _, err := auth.Login("bruno@example.com", "s3cret-pass", "", ""); err != nil {
		t.Fatalf("fresh login after reactivation: %v", err)
	}
}

func TestUpdateValidatesRole(t *testing.T) {
	svc, auth, _ := newUserHarness(t)
	user := registerTestUser(t, auth, "carla@example.com")

	bogus := "superuser"
	if _, err := svc.Update(user.ID, UserUpdate{Role: &bogus}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	admin := domain.RoleAdmin
	updated, err := svc.Update(user.ID, UserUpdate{Role: &admin})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !updated.IsAdmin() {
		t.Fatalf("expected admin after promotion, got %s", updated.Role)
	}

	name := "Carla Renamed"
	updated, err = svc.Update(user.ID, UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if updated.Name != name || !updated.IsAdmin() {
		t.Fatalf("partial update must not clobber other fields: %+v", updated)
	}

	if _, err := svc.Update(9999, UserUpdate{Name: &name}); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("missing user: expected ErrUserNotFound, got %v", err)
	}
}
