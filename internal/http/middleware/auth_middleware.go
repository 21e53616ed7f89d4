package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/http/response"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	tokenContextKey    contextKey = "token"
)

// Identity is the authenticated caller as the database sees it right now,
// not as the token claims remember it.
type Identity struct {
	ID           uint
	Name         string
	Email        string
	Role         string
	RegisteredAt time.Time
}

func (i *Identity) IsAdmin() bool { return i.Role == domain.RoleAdmin }

// Authenticate rejects any request that does not carry an access token the
// ledger still vouches for. The caller's identity comes from the joined user
// row; claims never override it.
func Authenticate(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token required", nil)
				return
			}

			user, err := auth.ValidateAccessToken(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrExpiredAccessToken):
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "expired token", nil)
				case errors.Is(err, service.ErrInvalidAccessToken):
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				default:
					// Revoked, row-expired and never-issued all read the
					// same; the client learns nothing about the ledger.
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user, raw)))
		})
	}
}

// OptionalAuth attaches an identity when a valid token is presented and
// passes the request through untouched otherwise. It never writes a 401.
func OptionalAuth(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := auth.ValidateAccessToken(r.Context(), raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user, raw)))
		})
	}
}

func withIdentity(ctx context.Context, user *domain.User, raw string) context.Context {
	identity := &Identity{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		RegisteredAt: user.RegisteredAt,
	}
	ctx = context.WithValue(ctx, identityContextKey, identity)
	return context.WithValue(ctx, tokenContextKey, raw)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	i, ok := ctx.Value(identityContextKey).(*Identity)
	return i, ok
}

func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenContextKey).(string)
	return t, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
