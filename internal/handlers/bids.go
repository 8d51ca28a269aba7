package handlers

import (
	"net/http"

	"procure/models"

	"github.com/go-chi/chi/v5"
)

type submitBidRequest struct {
	SupplierID   string  `json:"supplierId"`
	BidAmount    float64 `json:"bidAmount"`
	DeliveryDays int     `json:"deliveryDays"`
	Terms        *string `json:"terms"`
}

// SubmitBidHandler обрабатывает POST /api/requirements/{requirementId}/bids
func (h *Handler) SubmitBidHandler(w http.ResponseWriter, r *http.Request) {
	var req submitBidRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validateBidRequest(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	supplier, err := h.Store.GetUser(r.Context(), req.SupplierID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if supplier.Kind != models.KindSupplier && supplier.Kind != models.KindLogistics {
		h.writeError(w, r, models.E("submitBid", models.ErrForbidden, ""))
		return
	}

	fee, total := models.ServiceFee(req.BidAmount, h.Fees.BidServicePercent)
	bid := models.Bid{
		RequirementID: chi.URLParam(r, "requirementId"),
		SupplierID:    supplier.ID,
		BidAmount:     req.BidAmount,
		ServiceFee:    fee,
		TotalAmount:   total,
		DeliveryDays:  req.DeliveryDays,
		Terms:         req.Terms,
	}
	if err := h.Store.SubmitBid(r.Context(), &bid); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Metrics.BidSubmitted.Inc()
	writeJSON(w, http.StatusOK, bid)
}

func validateBidRequest(b *submitBidRequest) error {
	const op = "submitBid"
	if b.SupplierID == "" {
		return badRequest(op, "supplierId is required")
	}
	if b.BidAmount <= 0 {
		return badRequest(op, "bidAmount must be positive")
	}
	if b.DeliveryDays <= 0 || b.DeliveryDays > 3650 {
		return badRequest(op, "deliveryDays must be between 1 and 3650")
	}
	if b.Terms != nil && len(*b.Terms) > 2000 {
		return badRequest(op, "terms max length 2000")
	}
	return nil
}

// ListBidsHandler обрабатывает GET /api/requirements/{requirementId}/bids?order=&userId=
// Владелец заявки видит все предложения, остальные только свои.
func (h *Handler) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	order, ok := models.ParseBidOrder(r.URL.Query().Get("order"))
	if !ok {
		h.writeError(w, r, badRequest("listBids", "invalid order"))
		return
	}
	caller, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rq, err := h.Store.GetRequirement(r.Context(), chi.URLParam(r, "requirementId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	supplierFilter := caller.ID
	if rq.BuyerID == caller.ID {
		supplierFilter = ""
	}

	bids, err := h.Store.ListBids(r.Context(), rq.ID, supplierFilter, order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

type acceptBidResponse struct {
	Requirement *models.Requirement `json:"requirement"`
	Bid         models.BidView      `json:"bid"`
}

// AcceptBidHandler обрабатывает POST /api/requirements/{requirementId}/bids/{bidId}/accept?userId=
func (h *Handler) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	requirementID := chi.URLParam(r, "requirementId")
	bidID := chi.URLParam(r, "bidId")

	rq, bid, err := h.Store.AcceptBid(r.Context(), requirementID, bidID, buyer.ID)
	h.Metrics.BidAccept.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "bid.accepted", buyer.ID, "", map[string]any{
		"requirement_id": requirementID,
		"bid_id":         bidID,
	})
	writeJSON(w, http.StatusOK, acceptBidResponse{Requirement: rq, Bid: h.bidView(r, bid)})
}

// bidView обезличивает предложение; из профиля поставщика берётся только город.
func (h *Handler) bidView(r *http.Request, b *models.Bid) models.BidView {
	var city string
	if sup, err := h.Store.GetUser(r.Context(), b.SupplierID); err == nil {
		city = sup.City
	}
	return models.NewBidView(*b, city)
}
