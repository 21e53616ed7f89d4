package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

// ActiveSession is a sesiones row joined with the owning user's current
// identity fields. The user columns are read live on every lookup so a role
// change or deactivation takes effect on the next request, regardless of
// what the token claims say.
type ActiveSession struct {
	Session domain.Session
	User    domain.User
}

// SessionRepository is the session ledger: the single source of truth for
// revocation. A signed token that does not resolve to an active row here is
// worthless no matter how valid its signature is.
type SessionRepository interface {
	Create(s *domain.Session) error
	FindActiveByToken(token string) (*ActiveSession, error)
	FindActiveByRefreshToken(refreshToken string) (*ActiveSession, error)
	Revoke(token string) error
	RevokeAllForUser(userID uint) error
	Refresh(sessionID, newToken, newRefreshToken string, newExpiry time.Time) error
	CountActiveForUser(userID uint) (int64, error)
	Reap() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindActiveByToken(token string) (*ActiveSession, error) {
	return r.findActive("token = ?", token, "find_active_by_token")
}

func (r *GormSessionRepository) FindActiveByRefreshToken(refreshToken string) (*ActiveSession, error) {
	return r.findActive("refresh_token = ?", refreshToken, "find_active_by_refresh_token")
}

func (r *GormSessionRepository) findActive(cond, value, op string) (*ActiveSession, error) {
	var s domain.Session
	err := r.db.Where(cond, value).
		Where("activa = ? AND fecha_expiracion > ?", true, time.Now()).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", op, "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", op, "error")
		return nil, err
	}

	var u domain.User
	err = r.db.Where("id = ? AND activo = ?", s.UserID, true).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Owner deactivated; the session is as good as revoked.
			observability.RecordRepositoryOperation(context.Background(), "session", op, "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", op, "success")
	return &ActiveSession{Session: s, User: u}, nil
}

// Revoke flips activa to false. Idempotent: revoking an unknown or already
// revoked token is a no-op.
func (r *GormSessionRepository) Revoke(token string) error {
	err := r.db.Model(&domain.Session{}).
		Where("token = ?", token).
		Update("activa", false).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "revoke", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "revoke", "success")
	return nil
}

func (r *GormSessionRepository) RevokeAllForUser(userID uint) error {
	err := r.db.Model(&domain.Session{}).
		Where("usuario_id = ?", userID).
		Update("activa", false).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "revoke_all_for_user", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "revoke_all_for_user", "success")
	return nil
}

// Refresh rotates both tokens on an existing row in place, keeping the
// session id stable and extending its lifetime.
func (r *GormSessionRepository) Refresh(sessionID, newToken, newRefreshToken string, newExpiry time.Time) error {
	res := r.db.Model(&domain.Session{}).
		Where("id = ? AND activa = ?", sessionID, true).
		Updates(map[string]any{
			"token":            newToken,
			"refresh_token":    newRefreshToken,
			"fecha_expiracion": newExpiry,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "refresh", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "session", "refresh", "not_found")
		return ErrSessionNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "refresh", "success")
	return nil
}

func (r *GormSessionRepository) CountActiveForUser(userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&domain.Session{}).
		Where("usuario_id = ? AND activa = ? AND fecha_expiracion > ?", userID, true, time.Now()).
		Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "count_active_for_user", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "count_active_for_user", "success")
	return n, nil
}

// Reap deletes rows that can never validate again: expired or revoked.
// Deliberately not safety-critical; lookupActive enforces the same predicate
// on every request, so a delayed reap only leaves dead rows around.
func (r *GormSessionRepository) Reap() (int64, error) {
	res := r.db.Where("fecha_expiracion < ? OR activa = ?", time.Now(), false).
		Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "reap", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "reap", "success")
	return res.RowsAffected, nil
}
