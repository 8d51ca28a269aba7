package handlers

import (
	"net/http"
	"strings"

	"procure/models"

	"github.com/go-chi/chi/v5"
)

// CreateAffiliateHandler обрабатывает POST /api/affiliates?userId=
// Новая запись всегда создаётся в статусе PENDING.
func (h *Handler) CreateAffiliateHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a := models.Affiliate{UserID: u.ID}
	if err := h.Store.CreateAffiliate(r.Context(), &a); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListAffiliatesHandler обрабатывает GET /api/affiliates?status=
func (h *Handler) ListAffiliatesHandler(w http.ResponseWriter, r *http.Request) {
	status := models.AffiliateStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !models.ValidAffiliateStatus(status) {
		h.writeError(w, r, badRequest("listAffiliates", "invalid status"))
		return
	}
	list, err := h.Store.ListAffiliates(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAffiliateHandler обрабатывает GET /api/affiliates/{affiliateId}
func (h *Handler) GetAffiliateHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAffiliate(r.Context(), chi.URLParam(r, "affiliateId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// admin проверяет, что вызывающий - администратор
func (h *Handler) admin(r *http.Request, op string) (*models.User, error) {
	u, err := h.actor(r)
	if err != nil {
		return nil, err
	}
	if u.Kind != models.KindAdmin {
		h.audit(r.Context(), "admin.denied", u.ID, "not_admin", map[string]any{"op": op})
		return nil, models.E(op, models.ErrForbidden, "")
	}
	return u, nil
}

type affiliateStatusRequest struct {
	Status models.AffiliateStatus `json:"status"`
}

// UpdateAffiliateStatusHandler обрабатывает PATCH /api/affiliates/{affiliateId}/status?userId=
// Перевод в ACTIVE через этот путь запрещён: только activate-fifo.
func (h *Handler) UpdateAffiliateStatusHandler(w http.ResponseWriter, r *http.Request) {
	const op = "updateAffiliateStatus"
	admin, err := h.admin(r, op)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req affiliateStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	to := models.AffiliateStatus(strings.ToUpper(string(req.Status)))
	if !models.ValidAffiliateStatus(to) {
		h.writeError(w, r, badRequest(op, "invalid status"))
		return
	}

	id := chi.URLParam(r, "affiliateId")
	if to == models.AffiliateActive {
		h.audit(r.Context(), "affiliate.direct_active.rejected", admin.ID, "active_requires_fifo", map[string]any{"affiliate_id": id})
		h.writeError(w, r, models.E(op, models.ErrForbidden, ""))
		return
	}

	a, err := h.Store.UpdateAffiliateStatus(r.Context(), id, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "affiliate.status.changed", admin.ID, "", map[string]any{
		"affiliate_id": id,
		"status":       string(to),
	})
	writeJSON(w, http.StatusOK, a)
}

type activationResponse struct {
	Status        string `json:"status"`
	QueuePosition *int   `json:"queuePosition,omitempty"`
	AffiliateID   string `json:"affiliateId"`
}

// ActivateFifoHandler обрабатывает POST /api/affiliates/{affiliateId}/activate-fifo?userId=
// LIMIT_REACHED - штатный результат, а не ошибка.
func (h *Handler) ActivateFifoHandler(w http.ResponseWriter, r *http.Request) {
	const op = "activateFifo"
	admin, err := h.admin(r, op)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "affiliateId")

	res, err := h.Store.ActivateFifo(r.Context(), id)
	if err != nil {
		h.Metrics.AffiliateActivate.WithLabelValues(outcome(err)).Inc()
		h.writeError(w, r, err)
		return
	}

	if res.LimitReached {
		h.Metrics.AffiliateActivate.WithLabelValues("limit_reached").Inc()
		h.audit(r.Context(), "affiliate.activation.limit_reached", admin.ID, "", map[string]any{"affiliate_id": id})
		writeJSON(w, http.StatusOK, activationResponse{Status: "LIMIT_REACHED", AffiliateID: id})
		return
	}

	h.Metrics.AffiliateActivate.WithLabelValues("activated").Inc()
	h.audit(r.Context(), "affiliate.activated", admin.ID, "", map[string]any{
		"affiliate_id":   id,
		"queue_position": *res.Affiliate.QueuePosition,
	})
	writeJSON(w, http.StatusOK, activationResponse{
		Status:        string(res.Affiliate.Status),
		QueuePosition: res.Affiliate.QueuePosition,
		AffiliateID:   id,
	})
}
