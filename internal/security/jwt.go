package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/telemetrix/esp32-backend/internal/domain"
)

var (
	// ErrTokenExpired means the signature checked out but the token is past
	// its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed, tampered and wrong-type tokens.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload embedded in every signed token. Identity fields are
// snapshots taken at issuance; authorization always re-reads the user row
// through the session ledger, so these are advisory only.
type Claims struct {
	TokenType string `json:"token_type"`
	Name      string `json:"nombre"`
	Email     string `json:"correo"`
	Role      string `json:"rol"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens. Both classes
// share one HS256 secret and differ only in TTL and the token_type claim.
// Verification is pure: it never consults the session ledger.
type TokenManager struct {
	issuer string
	secret []byte
}

func NewTokenManager(issuer, secret string) *TokenManager {
	return &TokenManager{issuer: issuer, secret: []byte(secret)}
}

func (m *TokenManager) SignAccessToken(user *domain.User, ttl time.Duration) (string, error) {
	return m.sign(user, "access", ttl)
}

func (m *TokenManager) SignRefreshToken(user *domain.User, ttl time.Duration) (string, error) {
	return m.sign(user, "refresh", ttl)
}

func (m *TokenManager) sign(user *domain.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: tokenType,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, "access")
}

func (m *TokenManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, "refresh")
}

func (m *TokenManager) parse(raw, tokenType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid || claims.TokenType != tokenType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// SubjectUserID extracts the numeric user id from a sub claim.
func SubjectUserID(claims *Claims) (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil || id == 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}
