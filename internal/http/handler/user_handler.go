package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/telemetrix/esp32-backend/internal/http/middleware"
	"github.com/telemetrix/esp32-backend/internal/http/response"
	"github.com/telemetrix/esp32-backend/internal/observability"
	"github.com/telemetrix/esp32-backend/internal/repository"
	"github.com/telemetrix/esp32-backend/internal/service"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateUserRequest struct {
	Name  *string `json:"nombre" validate:"omitempty,min=2,max=100"`
	Email *string `json:"correo" validate:"omitempty,email,max=150"`
	Role  *string `json:"rol" validate:"omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"contraseñaActual" validate:"omitempty"`
	NewPassword     string `json:"nuevaContraseña" validate:"required,min=8,max=128"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.users.List(repository.PageRequest{Page: page, PageSize: pageSize}, q.Get("search"))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "user listing failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "user lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Only admins may touch roles; self-service updates are profile-only.
	if req.Role != nil {
		identity, _ := middleware.IdentityFromContext(r.Context())
		if identity == nil || !identity.IsAdmin() {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "only admins may change roles", nil)
			return
		}
	}

	user, err := h.users.Update(id, service.UserUpdate{Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		case errors.Is(err, service.ErrInvalidRole):
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role", nil)
		case errors.Is(err, repository.ErrEmailTaken):
			response.Error(w, r, http.StatusConflict, "EMAIL_TAKEN", "email already registered", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "user update failed", nil)
		}
		return
	}

	observability.Audit(r, "users.update", "target_id", id)
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Only the account owner has to prove the current password; an admin
	// resetting someone else's account doesn't know it.
	isSelf := false
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		isSelf = identity.ID == id
	}
	if isSelf && req.CurrentPassword == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "current password is required", nil)
		return
	}

	if err := h.users.ChangePassword(id, req.CurrentPassword, req.NewPassword, isSelf); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is wrong", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "password change failed", nil)
		}
		return
	}

	observability.Audit(r, "users.password_changed", "target_id", id)
	response.Msg(w, r, http.StatusOK, "password changed, all sessions closed", nil)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok && identity.ID == id {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "you cannot deactivate your own account", nil)
		return
	}
	if err := h.users.Deactivate(id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "deactivation failed", nil)
		return
	}

	observability.Audit(r, "users.deactivated", "target_id", id)
	response.Msg(w, r, http.StatusOK, "user deactivated, all sessions closed", nil)
}

func (h *UserHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.users.Reactivate(id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "reactivation failed", nil)
		return
	}

	observability.Audit(r, "users.reactivated", "target_id", id)
	response.Msg(w, r, http.StatusOK, "user reactivated", nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return 0, false
	}
	return uint(id), true
}
