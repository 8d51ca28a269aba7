package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает все маршруты API. timeout <= 0 отключает middleware.Timeout.
func NewRouter(h *Handler, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if timeout > 0 {
			r.Use(middleware.Timeout(timeout))
		}
		r.Get("/ping", h.PingHandler)

		// пользователи
		r.Post("/users", h.CreateUserHandler)
		r.Get("/users/{userId}", h.GetUserHandler)

		// заявки
		r.Post("/requirements", h.CreateRequirementHandler)
		r.Get("/requirements", h.ListRequirementsHandler)
		r.Get("/requirements/{requirementId}", h.GetRequirementHandler)
		r.Post("/requirements/{requirementId}/close", h.CloseRequirementHandler)
		r.Post("/requirements/{requirementId}/cancel", h.CancelRequirementHandler)

		// предложения (bids)
		r.Post("/requirements/{requirementId}/bids", h.SubmitBidHandler)
		r.Get("/requirements/{requirementId}/bids", h.ListBidsHandler)
		r.Post("/requirements/{requirementId}/bids/{bidId}/accept", h.AcceptBidHandler)

		// раскрытие контактов
		r.Post("/reveal-requests", h.RequestRevealHandler)
		r.Get("/reveal-requests/{requirementId}/{supplierId}", h.GetRevealHandler)
		r.Post("/reveal-requests/{requirementId}/{supplierId}/payment", h.RevealPaymentHandler)
		r.Post("/reveal-requests/{requirementId}/{supplierId}/confirm", h.ConfirmRevealHandler)
		r.Get("/reveal-requests/{requirementId}/{supplierId}/contact", h.RevealedContactHandler)

		// партнёры
		r.Post("/affiliates", h.CreateAffiliateHandler)
		r.Get("/affiliates", h.ListAffiliatesHandler)
		r.Get("/affiliates/{affiliateId}", h.GetAffiliateHandler)
		r.Patch("/affiliates/{affiliateId}/status", h.UpdateAffiliateStatusHandler)
		r.Post("/affiliates/{affiliateId}/activate-fifo", h.ActivateFifoHandler)

		// сессии управленческих ролей
		r.Put("/role-sessions/pin", h.ConfigurePinHandler)
		r.Get("/role-sessions/pin", h.HasPinHandler)
		r.Post("/role-sessions/verify", h.VerifyRoleHandler)
		r.Post("/role-sessions/logout", h.LogoutRoleSessionsHandler)
		r.Get("/role-sessions", h.RoleSessionStatusHandler)
		r.Delete("/role-sessions", h.ClearRoleSessionHandler)
	})
	return r
}
