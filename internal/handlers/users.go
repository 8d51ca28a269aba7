package handlers

import (
	"errors"
	"net/http"
	"strings"

	"procure/internal/security/password"
	"procure/models"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	Name     string          `json:"name"`
	Company  string          `json:"company"`
	Phone    string          `json:"phone"`
	Email    string          `json:"email"`
	City     string          `json:"city"`
	Address  string          `json:"address"`
	Kind     models.UserKind `json:"kind"`
	Password string          `json:"password"`
}

// CreateUserHandler обрабатывает POST /api/users
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validateUserRequest(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	hash, err := h.hasher.HashPassword(req.Password)
	switch {
	case errors.Is(err, password.ErrTooShort), errors.Is(err, password.ErrTooLong):
		h.writeError(w, r, badRequest("createUser", err.Error()))
		return
	case err != nil:
		h.writeError(w, r, err)
		return
	}

	u := models.User{
		Name:         req.Name,
		Company:      req.Company,
		Phone:        req.Phone,
		Email:        strings.ToLower(req.Email),
		City:         req.City,
		Address:      req.Address,
		Kind:         req.Kind,
		PasswordHash: hash,
	}
	if err := h.Store.CreateUser(r.Context(), &u); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func validateUserRequest(u *createUserRequest) error {
	const op = "createUser"
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.Name == "" || len(u.Name) > 100 {
		return badRequest(op, "name is required and max length 100")
	}
	if !strings.Contains(u.Email, "@") || len(u.Email) > 254 {
		return badRequest(op, "a valid email is required")
	}
	if !models.ValidUserKind(u.Kind) {
		return badRequest(op, "invalid kind")
	}
	if len(u.Company) > 200 || len(u.City) > 100 || len(u.Address) > 500 || len(u.Phone) > 32 {
		return badRequest(op, "profile field too long")
	}
	return nil
}

// GetUserHandler обрабатывает GET /api/users/{userId}[?userId=]
// Имя и компания отдаются только самому пользователю, остальным публичный профиль.
func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("userId") == u.ID {
		writeJSON(w, http.StatusOK, u)
		return
	}
	writeJSON(w, http.StatusOK, u.Profile())
}
