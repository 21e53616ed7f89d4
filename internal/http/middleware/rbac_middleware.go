package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/telemetrix/esp32-backend/internal/http/response"
)

// RequireAdmin gates a route on the caller's current role. The role was
// re-read from the database during authentication, so a demoted admin is
// locked out on their next request even with an old token.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token required", nil)
			return
		}
		if !identity.IsAdmin() {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminOrSelf allows admins through unconditionally and other users
// only when the {id} route parameter is their own.
func RequireAdminOrSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token required", nil)
			return
		}
		if !identity.IsAdmin() {
			id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
			if err != nil || uint(id) != identity.ID {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
