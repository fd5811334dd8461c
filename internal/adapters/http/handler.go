package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gigforge/escrow-engine/internal/application"
	"github.com/gigforge/escrow-engine/internal/contracts"
	"github.com/gigforge/escrow-engine/internal/domain"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code := mapDomainError(err)
	logHTTPOperationError(r.Context(), operation, status, code, err.Error(), err)
	writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
}

func jobIDParam(r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "jobID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req contracts.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.CreateJob(r.Context(), actor, application.CreateJobInput{
		FreelancerID:     req.FreelancerID,
		ArbiterID:        req.ArbiterID,
		MilestoneAmounts: req.MilestoneAmounts,
	})
	if err != nil {
		h.fail(w, r, "create_job", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "job created", toJobResponse(job))
}

func (h *Handler) fundJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.FundJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.FundJob(r.Context(), actor, application.FundJobInput{JobID: jobID, Amount: req.Amount})
	if err != nil {
		h.fail(w, r, "fund_job", err)
		return
	}
	writeSuccess(w, http.StatusOK, "job funded", toJobResponse(job))
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.CancelJob(r.Context(), actor, jobID)
	if err != nil {
		h.fail(w, r, "cancel_job", err)
		return
	}
	writeSuccess(w, http.StatusOK, "job cancelled", toJobResponse(job))
}

func (h *Handler) submitMilestone(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.SubmitMilestone(r.Context(), actor, jobID)
	if err != nil {
		h.fail(w, r, "submit_milestone", err)
		return
	}
	writeSuccess(w, http.StatusOK, "milestone submitted", toJobResponse(job))
}

func (h *Handler) acceptMilestone(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.AcceptMilestone(r.Context(), actor, jobID)
	if err != nil {
		h.fail(w, r, "accept_milestone", err)
		return
	}
	writeSuccess(w, http.StatusOK, "milestone accepted", toJobResponse(job))
}

func (h *Handler) raiseDispute(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.RaiseDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.RaiseDispute(r.Context(), actor, application.RaiseDisputeInput{JobID: jobID, Reason: req.Reason})
	if err != nil {
		h.fail(w, r, "raise_dispute", err)
		return
	}
	writeSuccess(w, http.StatusOK, "dispute raised", toJobResponse(job))
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	var req contracts.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context()))
		return
	}
	actor := actorFromContext(r.Context())
	job, err := h.service.ResolveDispute(r.Context(), actor, application.ResolveDisputeInput{JobID: jobID, Outcome: req.Outcome})
	if err != nil {
		h.fail(w, r, "resolve_dispute", err)
		return
	}
	writeSuccess(w, http.StatusOK, "dispute resolved", toJobResponse(job))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	amount, err := h.service.Withdraw(r.Context(), actor)
	if err != nil {
		h.fail(w, r, "withdraw", err)
		return
	}
	writeSuccess(w, http.StatusOK, "withdrawal settled", contracts.WithdrawalResponse{Identity: actor.SubjectID, Amount: amount})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.fail(w, r, "get_job", err)
		return
	}
	writeSuccess(w, http.StatusOK, "job", toJobResponse(job))
}

func (h *Handler) getMilestone(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid job id", requestIDFromContext(r.Context()))
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_milestone", "invalid milestone index", requestIDFromContext(r.Context()))
		return
	}
	milestone, err := h.service.GetMilestone(r.Context(), jobID, index)
	if err != nil {
		h.fail(w, r, "get_milestone", err)
		return
	}
	writeSuccess(w, http.StatusOK, "milestone", contracts.MilestoneResponse{Index: index, Amount: milestone.Amount, State: string(milestone.State)})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	account, err := h.service.GetBalance(r.Context(), actor.SubjectID)
	if err != nil {
		h.fail(w, r, "get_balance", err)
		return
	}
	writeSuccess(w, http.StatusOK, "withdrawal balance", contracts.BalanceResponse{Identity: account.Identity, Owed: account.Owed, LifetimeCredited: account.LifetimeCredited})
}

func toJobResponse(job domain.Job) contracts.JobResponse {
	milestones := make([]contracts.MilestoneResponse, len(job.Milestones))
	for i, m := range job.Milestones {
		milestones[i] = contracts.MilestoneResponse{Index: i, Amount: m.Amount, State: string(m.State)}
	}
	return contracts.JobResponse{
		JobID:            job.JobID,
		Client:           job.Client,
		Freelancer:       job.Freelancer,
		Arbiter:          job.Arbiter,
		TotalAmount:      job.TotalAmount,
		State:            string(job.State),
		CurrentMilestone: job.CurrentMilestone,
		Milestones:       milestones,
	}
}
