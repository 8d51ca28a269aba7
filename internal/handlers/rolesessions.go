package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"procure/internal/rolesession"
	"procure/models"
)

type configurePinRequest struct {
	Role     models.Role `json:"role"`
	Pin      string      `json:"pin"`
	Password string      `json:"password"`
}

// ConfigurePinHandler обрабатывает PUT /api/role-sessions/pin?userId=
func (h *Handler) ConfigurePinHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req configurePinRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Sessions.ConfigurePin(r.Context(), u.ID, req.Role, req.Pin, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": req.Role, "configured": true})
}

// HasPinHandler обрабатывает GET /api/role-sessions/pin?userId=&role=
func (h *Handler) HasPinHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	role := roleParam(r)
	ok, err := h.Sessions.HasPinConfigured(r.Context(), u.ID, role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": role, "configured": ok})
}

type verifyRoleRequest struct {
	Role       models.Role        `json:"role"`
	Method     rolesession.Method `json:"method"`
	Credential string             `json:"credential"`
}

type verifyRoleResponse struct {
	Verified  bool       `json:"verified"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// VerifyRoleHandler обрабатывает POST /api/role-sessions/verify?userId=
func (h *Handler) VerifyRoleHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req verifyRoleRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var s rolesession.Session
	switch req.Method {
	case rolesession.MethodPIN:
		s, err = h.Sessions.VerifyWithPin(r.Context(), u.ID, req.Role, req.Credential)
	case rolesession.MethodPassword:
		s, err = h.Sessions.VerifyWithPassword(r.Context(), u.ID, req.Role, req.Credential)
	default:
		err = badRequest("verifyRole", `method must be "pin" or "password"`)
	}

	if errors.Is(err, models.ErrVerificationFailed) {
		resp := models.ToErrorResponse(err)
		writeJSON(w, resp.StatusCode, verifyRoleResponse{Verified: false, Error: resp.Message})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyRoleResponse{Verified: true, ExpiresAt: &s.ExpiresAt})
}

// RoleSessionStatusHandler обрабатывает GET /api/role-sessions?userId=&role=
func (h *Handler) RoleSessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	role := roleParam(r)
	if !models.ValidRole(role) {
		h.writeError(w, r, badRequest("roleSession", "unknown role"))
		return
	}
	resp := verifyRoleResponse{}
	if s, ok := h.Sessions.Session(u.ID, role); ok {
		resp.Verified = true
		resp.ExpiresAt = &s.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearRoleSessionHandler обрабатывает DELETE /api/role-sessions?userId=&role=
// Без role очищаются все сессии пользователя.
func (h *Handler) ClearRoleSessionHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	role := roleParam(r)
	if role == "" {
		h.clearAll(w, r, u.ID)
		return
	}
	if !models.ValidRole(role) {
		h.writeError(w, r, badRequest("roleSession", "unknown role"))
		return
	}
	cleared := 0
	if h.Sessions.Clear(u.ID, role) {
		cleared = 1
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// LogoutRoleSessionsHandler обрабатывает POST /api/role-sessions/logout?userId=
func (h *Handler) LogoutRoleSessionsHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearAll(w, r, u.ID)
}

func (h *Handler) clearAll(w http.ResponseWriter, r *http.Request, userID string) {
	n := h.Sessions.ClearAll(userID)
	h.audit(r.Context(), "role.sessions.cleared", userID, "", map[string]any{"count": n})
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func roleParam(r *http.Request) models.Role {
	return models.Role(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))
}
