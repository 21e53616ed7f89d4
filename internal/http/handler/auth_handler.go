package handler

import (
	"errors"
	"net/http"

	"github.com/telemetrix/esp32-backend/internal/http/middleware"
	"github.com/telemetrix/esp32-backend/internal/http/response"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contraseña" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"nombre" validate:"required,min=2,max=100"`
	Email    string `json:"correo" validate:"required,email,max=150"`
	Password string `json:"contraseña" validate:"required,min=8,max=128"`
	Role     string `json:"rol" validate:"omitempty,oneof=admin usuario"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.auth.Login(req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}

	observability.Audit(r, "auth.login", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.auth.Register(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			response.Error(w, r, http.StatusConflict, "EMAIL_TAKEN", "email already registered", nil)
		case errors.Is(err, service.ErrInvalidRole):
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
		}
		return
	}

	observability.Audit(r, "auth.register", "user_id", user.ID)
	response.Msg(w, r, http.StatusCreated, "user registered", user)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "refresh failed", nil)
		return
	}

	observability.Audit(r, "auth.refresh", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token required", nil)
		return
	}
	if err := h.auth.Logout(token); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}

	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		observability.Audit(r, "auth.logout", "user_id", identity.ID)
	}
	response.Msg(w, r, http.StatusOK, "session closed", nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token required", nil)
		return
	}
	user, err := h.auth.CurrentUser(identity.ID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "profile lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
