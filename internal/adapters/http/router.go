package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/jobs", handler.createJob)
			r.Get("/jobs/{jobID}", handler.getJob)
			r.Post("/jobs/{jobID}/fund", handler.fundJob)
			r.Post("/jobs/{jobID}/cancel", handler.cancelJob)
			r.Post("/jobs/{jobID}/milestones/submit", handler.submitMilestone)
			r.Post("/jobs/{jobID}/milestones/accept", handler.acceptMilestone)
			r.Get("/jobs/{jobID}/milestones/{index}", handler.getMilestone)
			r.Post("/jobs/{jobID}/disputes", handler.raiseDispute)
			r.Post("/jobs/{jobID}/disputes/resolve", handler.resolveDispute)
			r.Post("/withdrawals", handler.withdraw)
			r.Get("/wallet/balance", handler.getBalance)
		})
	})
	return r
}
