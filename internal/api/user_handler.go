package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"userservice/internal/domain"
	"userservice/pkg/logger"
)

type UserHandler struct {
	service  domain.UserService
	validate *validator.Validate
	logger   logger.Logger
}

func NewUserHandler(service domain.UserService, logger logger.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("GET /api/users", h.GetAllUsers)
	mux.HandleFunc("GET /api/users/active", h.GetActiveUsers)
	mux.HandleFunc("GET /api/users/{id}", h.GetUserByID)
	mux.HandleFunc("PUT /api/users/{id}", h.UpdateUser)
	mux.HandleFunc("PATCH /api/users/{id}/deactivate", h.DeactivateUser)
	mux.HandleFunc("DELETE /api/users/{id}", h.DeleteUser)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decodeUser(w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateUser(r.Context(), dto)
	if err != nil {
		h.fail(w, r, "User creation failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "User lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetAllUsers(r.Context())
	if err != nil {
		h.fail(w, r, "User listing failed", err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetActiveUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetActiveUsers(r.Context())
	if err != nil {
		h.fail(w, r, "Active user listing failed", err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	dto, ok := h.decodeUser(w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateUser(r.Context(), id, dto)
	if err != nil {
		h.fail(w, r, "User update failed", err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	user, err := h.service.DeactivateUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, "User deactivation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, "User deletion failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.logger.WarnContext(r.Context(), "Invalid user id", map[string]interface{}{"id": raw})
		writeError(w, http.StatusBadRequest, "invalid user id", nil)
		return 0, false
	}
	return id, true
}

func (h *UserHandler) decodeUser(w http.ResponseWriter, r *http.Request) (*domain.UserDTO, bool) {
	var dto domain.UserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.logger.WarnContext(r.Context(), "Request body could not be decoded", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return nil, false
	}

	if err := h.validate.Struct(&dto); err != nil {
		details := FormatValidationErrors(err)
		if details == nil {
			h.logger.ErrorContext(r.Context(), "Request validation failed", map[string]interface{}{"error": err.Error()})
			writeError(w, http.StatusInternalServerError, "validation failed", nil)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "validation failed", details)
		return nil, false
	}

	return &dto, true
}

func (h *UserHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	fields := map[string]interface{}{"error": err.Error(), "status": status}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, fields)
		writeError(w, status, "internal server error", nil)
		return
	}

	h.logger.WarnContext(r.Context(), msg, fields)
	writeError(w, status, err.Error(), nil)
}
