package service

import (
	"context"
	"errors"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/security"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrExpiredAccessToken  = errors.New("expired access token")
	// ErrSessionNotActive covers every ledger miss: revoked, row-expired,
	// owner deactivated, or never issued at all.
	ErrSessionNotActive = errors.New("session not active")
)

// AuthResult is what a successful login or refresh hands back to the client.
type AuthResult struct {
	User         *domain.User `json:"usuario"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	loginLogs  repository.LoginLogRepository
	tokens     *security.TokenManager
	hasher     *security.PasswordHasher
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	loginLogs repository.LoginLogRepository,
	tokens *security.TokenManager,
	hasher *security.PasswordHasher,
	accessTTL, refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		loginLogs:  loginLogs,
		tokens:     tokens,
		hasher:     hasher,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Login verifies credentials and opens a new session. Every login gets its
// own ledger row, so concurrent sessions for one user coexist and are revoked
// independently. The response is only assembled after the row is persisted;
// a token the ledger never saw must not reach the client.
func (s *AuthService) Login(email, password, ip, userAgent string) (*AuthResult, error) {
	user, err := s.users.FindActiveByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logAttempt(nil, email, false, ip, userAgent, "usuario no encontrado o inactivo")
			observability.RecordAuthLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		observability.RecordAuthLogin("error")
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.logAttempt(&user.ID, email, false, ip, userAgent, "contraseña incorrecta")
		observability.RecordAuthLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	result, err := s.openSession(user, ip, userAgent)
	if err != nil {
		observability.RecordAuthLogin("error")
		return nil, err
	}

	s.logAttempt(&user.ID, email, true, ip, userAgent, "login exitoso")
	// Bookkeeping only; the session is already valid.
	_ = s.users.TouchLastAccess(user.ID)
	observability.RecordAuthLogin("success")
	return result, nil
}

// Register creates an account. An empty role defaults to usuario; anything
// outside the role enum is rejected.
func (s *AuthService) Register(name, email, password, role string) (*domain.User, error) {
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Refresh exchanges a refresh token for a new token pair, rotating both
// tokens on the existing session row. The session id stays stable; the old
// pair stops validating the moment the row is updated.
func (s *AuthService) Refresh(refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		observability.RecordAuthRefresh("invalid_token")
		return nil, ErrInvalidRefreshToken
	}

	active, err := s.sessions.FindActiveByRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAuthRefresh("not_in_ledger")
			return nil, ErrInvalidRefreshToken
		}
		observability.RecordAuthRefresh("error")
		return nil, err
	}

	subject, err := security.SubjectUserID(claims)
	if err != nil || subject != active.User.ID {
		observability.RecordAuthRefresh("invalid_token")
		return nil, ErrInvalidRefreshToken
	}

	user := &active.User
	access, err := s.tokens.SignAccessToken(user, s.accessTTL)
	if err != nil {
		observability.RecordAuthRefresh("error")
		return nil, err
	}
	newRefresh, err := s.tokens.SignRefreshToken(user, s.refreshTTL)
	if err != nil {
		observability.RecordAuthRefresh("error")
		return nil, err
	}

	expiry := time.Now().Add(s.accessTTL)
	if err := s.sessions.Refresh(active.Session.ID, access, newRefresh, expiry); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAuthRefresh("not_in_ledger")
			return nil, ErrInvalidRefreshToken
		}
		observability.RecordAuthRefresh("error")
		return nil, err
	}

	observability.RecordAuthRefresh("success")
	return &AuthResult{
		User:         user,
		Token:        access,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Logout revokes the session behind the presented token. Idempotent: logging
// out twice, or with a token that was never issued, still succeeds.
func (s *AuthService) Logout(token string) error {
	if err := s.sessions.Revoke(token); err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

// ValidateAccessToken runs the full dual check: signature and claims first,
// then the ledger. Both must pass; the ledger row joined with a live user is
// what actually grants access, the signature only proves the token is ours.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*domain.User, error) {
	if _, err := s.tokens.ParseAccessToken(token); err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			observability.RecordAccessTokenValidation(ctx, "expired")
			return nil, ErrExpiredAccessToken
		}
		observability.RecordAccessTokenValidation(ctx, "invalid_signature")
		return nil, ErrInvalidAccessToken
	}

	active, err := s.sessions.FindActiveByToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordAccessTokenValidation(ctx, "not_in_ledger")
			return nil, ErrSessionNotActive
		}
		observability.RecordAccessTokenValidation(ctx, "error")
		return nil, err
	}

	observability.RecordAccessTokenValidation(ctx, "success")
	return &active.User, nil
}

// CurrentUser reloads the authenticated user's own row.
func (s *AuthService) CurrentUser(id uint) (*domain.User, error) {
	return s.users.FindByID(id)
}

func (s *AuthService) openSession(user *domain.User, ip, userAgent string) (*AuthResult, error) {
	access, err := s.tokens.SignAccessToken(user, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.SignRefreshToken(user, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	sessionID, err := security.NewSessionID()
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:           sessionID,
		UserID:       user.ID,
		Token:        access,
		RefreshToken: &refresh,
		ExpiresAt:    time.Now().Add(s.accessTTL),
		Active:       true,
		IPAddress:    ip,
		UserAgent:    userAgent,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) logAttempt(userID *uint, email string, success bool, ip, userAgent, message string) {
	// Audit trail must never fail the login path.
	_ = s.loginLogs.Append(&domain.LoginLog{
		UserID:    userID,
		Email:     email,
		Success:   success,
		IPAddress: ip,
		UserAgent: userAgent,
		Message:   message,
	})
}
