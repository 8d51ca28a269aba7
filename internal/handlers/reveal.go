package handlers

import (
	"net/http"
	"strings"

	"procure/models"

	"github.com/go-chi/chi/v5"
)

// supplierId необязателен: покупатель видит только строку листинга, поставщик берётся из предложения.
type revealRequest struct {
	RequirementID string `json:"requirementId"`
	SupplierID    string `json:"supplierId,omitempty"`
	BidID         string `json:"bidId"`
}

type revealResponse struct {
	*models.RevealRequest
	PaymentFailed bool `json:"paymentFailed,omitempty"`
}

// RequestRevealHandler обрабатывает POST /api/reveal-requests?userId=
func (h *Handler) RequestRevealHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req revealRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.RequirementID == "" || req.BidID == "" {
		h.writeError(w, r, badRequest("requestReveal", "requirementId and bidId are required"))
		return
	}

	rr, moved, err := h.Store.RequestReveal(r.Context(), models.RevealInput{
		RequirementID: req.RequirementID,
		SupplierID:    req.SupplierID,
		BidID:         req.BidID,
		BuyerID:       buyer.ID,
		Fee:           h.Fees.Reveal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if moved {
		h.Metrics.RevealTransition.WithLabelValues(string(models.RevealRequested)).Inc()
		h.audit(r.Context(), "reveal.requested", buyer.ID, "", map[string]any{
			"requirement_id": rr.RequirementID,
			"supplier_id":    rr.SupplierID,
			"bid_id":         rr.BidID,
		})
	}
	writeJSON(w, http.StatusOK, revealResponse{RevealRequest: rr})
}

// GetRevealHandler обрабатывает GET /api/reveal-requests/{requirementId}/{supplierId}?userId=
func (h *Handler) GetRevealHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rr, err := h.Store.GetReveal(r.Context(), chi.URLParam(r, "requirementId"), chi.URLParam(r, "supplierId"), buyer.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revealResponse{RevealRequest: rr})
}

type paymentRequest struct {
	PaymentRef string `json:"paymentRef"`
	Success    *bool  `json:"success"`
}

// RevealPaymentHandler обрабатывает POST /api/reveal-requests/{requirementId}/{supplierId}/payment?userId=
// Неуспешная оплата оставляет статус requested, чтобы покупатель мог повторить.
func (h *Handler) RevealPaymentHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Success == nil {
		h.writeError(w, r, badRequest("revealPayment", "success is required"))
		return
	}
	requirementID, supplierID := chi.URLParam(r, "requirementId"), chi.URLParam(r, "supplierId")

	if !*req.Success {
		rr, err := h.Store.GetReveal(r.Context(), requirementID, supplierID, buyer.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.audit(r.Context(), "reveal.payment.failed", buyer.ID, "payment_declined", map[string]any{
			"requirement_id": requirementID,
			"supplier_id":    supplierID,
		})
		writeJSON(w, http.StatusOK, revealResponse{RevealRequest: rr, PaymentFailed: true})
		return
	}

	ref := strings.TrimSpace(req.PaymentRef)
	if ref == "" || len(ref) > 200 {
		h.writeError(w, r, badRequest("revealPayment", "paymentRef is required and max length 200"))
		return
	}
	h.advance(w, r, buyer.ID, requirementID, supplierID, models.RevealPaid, &ref)
}

// ConfirmRevealHandler обрабатывает POST /api/reveal-requests/{requirementId}/{supplierId}/confirm?userId=
func (h *Handler) ConfirmRevealHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.advance(w, r, buyer.ID, chi.URLParam(r, "requirementId"), chi.URLParam(r, "supplierId"), models.RevealRevealed, nil)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, buyerID, requirementID, supplierID string, target models.RevealStatus, ref *string) {
	before, err := h.Store.GetReveal(r.Context(), requirementID, supplierID, buyerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rr, err := h.Store.AdvanceReveal(r.Context(), requirementID, supplierID, buyerID, target, ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if before.Status != rr.Status {
		h.Metrics.RevealTransition.WithLabelValues(string(rr.Status)).Inc()
		h.audit(r.Context(), "reveal."+string(rr.Status), buyerID, "", map[string]any{
			"requirement_id": requirementID,
			"supplier_id":    supplierID,
		})
	}
	writeJSON(w, http.StatusOK, revealResponse{RevealRequest: rr})
}

// RevealedContactHandler обрабатывает GET /api/reveal-requests/{requirementId}/{supplierId}/contact?userId=
// Единственный путь, по которому контакты поставщика покидают систему.
func (h *Handler) RevealedContactHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Store.GetRevealedContact(r.Context(), chi.URLParam(r, "requirementId"), chi.URLParam(r, "supplierId"), buyer.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
