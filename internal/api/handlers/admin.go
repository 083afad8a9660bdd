package handlers

import (
	"net/http"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AdminHandler struct {
	admin    *service.AdminService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewAdminHandler(admin *service.AdminService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		validate: validator.New(),
		log:      log,
	}
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
	Role     string `json:"role"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context(), identity.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, "admin.ListUsers", err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	user, err := h.admin.CreateUserAccount(r.Context(), identity.ActorFromContext(r.Context()), service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		writeServiceError(w, h.log, "admin.CreateUser", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	user, err := h.admin.SetUserRole(r.Context(), identity.ActorFromContext(r.Context()), id, domain.Role(req.Role))
	if err != nil {
		writeServiceError(w, h.log, "admin.SetRole", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.admin.DeleteUserAccount(r.Context(), identity.ActorFromContext(r.Context()), id); err != nil {
		writeServiceError(w, h.log, "admin.DeleteUser", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
