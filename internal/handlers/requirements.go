package handlers

import (
	"net/http"
	"strings"
	"time"

	"procure/models"

	"github.com/go-chi/chi/v5"
)

type createRequirementRequest struct {
	Title            string    `json:"title"`
	Category         string    `json:"category"`
	Quantity         float64   `json:"quantity"`
	Unit             string    `json:"unit"`
	DeliveryLocation string    `json:"deliveryLocation"`
	Deadline         time.Time `json:"deadline"`
}

// CreateRequirementHandler обрабатывает POST /api/requirements?userId=
func (h *Handler) CreateRequirementHandler(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if buyer.Kind != models.KindBuyer {
		h.writeError(w, r, models.E("createRequirement", models.ErrForbidden, ""))
		return
	}

	var req createRequirementRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validateRequirementRequest(&req, time.Now()); err != nil {
		h.writeError(w, r, err)
		return
	}

	rq := models.Requirement{
		BuyerID:          buyer.ID,
		Title:            req.Title,
		Category:         req.Category,
		Quantity:         req.Quantity,
		Unit:             req.Unit,
		DeliveryLocation: req.DeliveryLocation,
		Deadline:         req.Deadline.UTC(),
	}
	if err := h.Store.CreateRequirement(r.Context(), &rq); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rq)
}

func validateRequirementRequest(req *createRequirementRequest, now time.Time) error {
	const op = "createRequirement"
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 200 {
		return badRequest(op, "title is required and max length 200")
	}
	if req.Category == "" || len(req.Category) > 100 {
		return badRequest(op, "category is required and max length 100")
	}
	if req.Quantity <= 0 {
		return badRequest(op, "quantity must be positive")
	}
	if req.Unit == "" || len(req.Unit) > 20 {
		return badRequest(op, "unit is required and max length 20")
	}
	if req.DeliveryLocation == "" || len(req.DeliveryLocation) > 200 {
		return badRequest(op, "deliveryLocation is required and max length 200")
	}
	if !req.Deadline.After(now) {
		return badRequest(op, "deadline must be in the future")
	}
	return nil
}

// GetRequirementHandler обрабатывает GET /api/requirements/{requirementId}
func (h *Handler) GetRequirementHandler(w http.ResponseWriter, r *http.Request) {
	rq, err := h.Store.GetRequirement(r.Context(), chi.URLParam(r, "requirementId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rq)
}

// ListRequirementsHandler обрабатывает GET /api/requirements?status=&limit=&offset=
func (h *Handler) ListRequirementsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	var statuses []models.RequirementStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			st := models.RequirementStatus(strings.TrimSpace(s))
			if st == "" {
				continue
			}
			if !models.ValidRequirementStatus(st) {
				h.writeError(w, r, badRequest("listRequirements", "invalid status "+string(st)))
				return
			}
			statuses = append(statuses, st)
		}
	}

	reqs, err := h.Store.ListRequirements(r.Context(), statuses, params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// CloseRequirementHandler обрабатывает POST /api/requirements/{requirementId}/close
func (h *Handler) CloseRequirementHandler(w http.ResponseWriter, r *http.Request) {
	h.endRequirement(w, r, models.RequirementClosed)
}

// CancelRequirementHandler обрабатывает POST /api/requirements/{requirementId}/cancel
func (h *Handler) CancelRequirementHandler(w http.ResponseWriter, r *http.Request) {
	h.endRequirement(w, r, models.RequirementCancelled)
}

func (h *Handler) endRequirement(w http.ResponseWriter, r *http.Request, target models.RequirementStatus) {
	buyer, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "requirementId")
	rq, err := h.Store.CloseRequirement(r.Context(), id, buyer.ID, target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit(r.Context(), "requirement."+string(target), buyer.ID, "", map[string]any{"requirement_id": id})
	writeJSON(w, http.StatusOK, rq)
}
